package session

import (
	"context"

	"github.com/ntrung/songclash/internal/domain"
)

// Store is the transactional session store. Implementations must give each
// Update call a consistent snapshot of the session and all its players,
// serialized against concurrent Update calls on the same session, so that
// completion and first-to-finish decisions always run against fresh state.
type Store interface {
	// InsertSession persists a new session together with its players.
	InsertSession(ctx context.Context, s *domain.Session) error

	// ViewSession returns a read-only snapshot of the session with the
	// given join code.
	ViewSession(ctx context.Context, code string) (*domain.Session, error)

	// UpdateSession loads the session by code under an exclusive lock,
	// applies fn to it and persists the result atomically. A session left
	// with zero players is deleted instead. The returned snapshot reflects
	// the committed state.
	UpdateSession(ctx context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error)

	// UpdateSessionByID behaves like UpdateSession, keyed by session ID.
	UpdateSessionByID(ctx context.Context, id string, fn func(s *domain.Session) error) (*domain.Session, error)

	// SessionSeq returns the next value of a counter covering every session
	// ever created, used as the join-code sequence base.
	SessionSeq(ctx context.Context) (int64, error)

	// ActiveCodes returns the join codes of all sessions in a non-terminal
	// status. Codes of completed sessions may be reused.
	ActiveCodes(ctx context.Context) (map[string]struct{}, error)
}
