package domain

import (
	"strings"
	"time"
)

// Status of a game session. A session is created WAITING, becomes ACTIVE when
// the host starts it, and transitions to COMPLETED exactly once.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Session represents one game instance: a join code, a playlist and the
// players guessing against it.
type Session struct {
	SessionID  string
	Code       string
	PlaylistID string
	Status     Status
	CreatedAt  time.Time
	EndedAt    *time.Time

	// Players ordered by join time, oldest first. Host status moves to the
	// next-oldest player when the host leaves.
	Players []*Player
}

// Player is a session participant. UserID is empty for guests.
type Player struct {
	PlayerID  string
	SessionID string
	Nickname  string
	UserID    string
	IsHost    bool
	JoinedAt  time.Time

	Score        int
	SongsCorrect int
	TotalGuesses int
	Ledger       Ledger

	// CompletionSeconds is set once, when the player finishes every song.
	CompletionSeconds *int
	FinishRank        FinishRank
}

// Player returns the participant with the given ID, or nil.
func (s *Session) Player(id string) *Player {
	for _, p := range s.Players {
		if p.PlayerID == id {
			return p
		}
	}
	return nil
}

// NicknameTaken reports whether any player already uses the nickname,
// ignoring case.
func (s *Session) NicknameTaken(nickname string) bool {
	for _, p := range s.Players {
		if strings.EqualFold(p.Nickname, nickname) {
			return true
		}
	}
	return false
}

// Multiplayer reports whether the session has more than one participant.
func (s *Session) Multiplayer() bool { return len(s.Players) > 1 }

// Clone returns a deep copy of the session. Event payloads and transactional
// stores hand out clones so later mutations cannot leak across the snapshot
// boundary.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	c.Players = make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		c.Players = append(c.Players, p.Clone())
	}
	return &c
}

// Clone returns a deep copy of the player, including the attempt ledger.
func (p *Player) Clone() *Player {
	c := *p
	if p.CompletionSeconds != nil {
		v := *p.CompletionSeconds
		c.CompletionSeconds = &v
	}
	c.Ledger = p.Ledger.Clone()
	return &c
}

// FinishRank captures the first-to-finish outcome for a player. Single-player
// sessions never hold a meaningful rank, and a multiplayer rank stays pending
// until the player finishes, so the states are kept apart instead of being
// collapsed into one bool.
type FinishRank int8

const (
	// FinishNotApplicable marks players in single-player sessions.
	FinishNotApplicable FinishRank = iota
	// FinishPending marks multiplayer players that have not finished yet.
	FinishPending
	FinishFirst
	FinishNotFirst
)

// Bool maps the rank onto the nullable boolean persisted and serialized at
// the boundaries: true/false for decided ranks, nil otherwise.
func (r FinishRank) Bool() *bool {
	switch r {
	case FinishFirst:
		t := true
		return &t
	case FinishNotFirst:
		f := false
		return &f
	default:
		return nil
	}
}

// FinishRankOf reconstructs a rank from its persisted nullable boolean.
func FinishRankOf(b *bool, multiplayer bool) FinishRank {
	switch {
	case b != nil && *b:
		return FinishFirst
	case b != nil:
		return FinishNotFirst
	case multiplayer:
		return FinishPending
	default:
		return FinishNotApplicable
	}
}

func (r FinishRank) String() string {
	switch r {
	case FinishPending:
		return "pending"
	case FinishFirst:
		return "first"
	case FinishNotFirst:
		return "not_first"
	default:
		return "n/a"
	}
}
