package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/errors"
)

// PGStore is the postgres-backed session store. UpdateSession serializes
// concurrent writers on the same session with a SELECT ... FOR UPDATE on the
// session row, which makes the player list read inside the transaction the
// consistent snapshot completion decisions need.
type PGStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const codeUniqueViolation = "23505"

func (s *PGStore) InsertSession(ctx context.Context, ss *domain.Session) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const stmt = `
INSERT INTO sessions (session_id, code, playlist_id, status, created_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6);`

	_, err = tx.Exec(ctx, stmt, ss.SessionID, ss.Code, ss.PlaylistID, ss.Status, ss.CreatedAt, ss.EndedAt)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("join code %s is already in use", ss.Code),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, p := range ss.Players {
		if err = upsertPlayer(ctx, tx, p); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) ViewSession(ctx context.Context, code string) (*domain.Session, error) {
	return s.loadSession(ctx, s.db, "code", code, false)
}

func (s *PGStore) UpdateSession(ctx context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error) {
	return s.update(ctx, "code", code, fn)
}

func (s *PGStore) UpdateSessionByID(ctx context.Context, id string, fn func(s *domain.Session) error) (*domain.Session, error) {
	return s.update(ctx, "session_id", id, fn)
}

func (s *PGStore) update(ctx context.Context, col, key string, fn func(s *domain.Session) error) (ss *domain.Session, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	ss, err = s.loadSession(ctx, tx, col, key, true)
	if err != nil {
		return nil, err
	}

	if err = fn(ss); err != nil {
		return nil, err
	}

	if len(ss.Players) == 0 {
		// Last player gone: drop the whole session, players cascade.
		if _, err = tx.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1;`, ss.SessionID); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	const updStmt = `UPDATE sessions SET status = $2, ended_at = $3 WHERE session_id = $1;`
	if _, err = tx.Exec(ctx, updStmt, ss.SessionID, ss.Status, ss.EndedAt); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	kept := make([]string, 0, len(ss.Players))
	for _, p := range ss.Players {
		if err = upsertPlayer(ctx, tx, p); err != nil {
			return nil, err
		}
		kept = append(kept, p.PlayerID)
	}

	const delStmt = `DELETE FROM players WHERE session_id = $1 AND NOT (player_id = ANY($2::uuid[]));`
	if _, err = tx.Exec(ctx, delStmt, ss.SessionID, kept); err != nil {
		return nil, fmt.Errorf("delete removed players: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	return ss, nil
}

func upsertPlayer(ctx context.Context, tx pgx.Tx, p *domain.Player) error {
	ledger, err := json.Marshal(p.Ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	const stmt = `
INSERT INTO players (player_id, session_id, nickname, user_id, is_host, joined_at,
                     score, songs_correct, total_guesses, attempts, completion_seconds, first_to_finish)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (player_id) DO UPDATE SET
	is_host            = EXCLUDED.is_host,
	score              = EXCLUDED.score,
	songs_correct      = EXCLUDED.songs_correct,
	total_guesses      = EXCLUDED.total_guesses,
	attempts           = EXCLUDED.attempts,
	completion_seconds = EXCLUDED.completion_seconds,
	first_to_finish    = EXCLUDED.first_to_finish;`

	_, err = tx.Exec(ctx, stmt,
		p.PlayerID, p.SessionID, p.Nickname, p.UserID, p.IsHost, p.JoinedAt,
		p.Score, p.SongsCorrect, p.TotalGuesses, ledger, p.CompletionSeconds, p.FinishRank.Bool())
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.PlayerID, err)
	}

	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) loadSession(ctx context.Context, q queryer, col, key string, forUpdate bool) (*domain.Session, error) {
	stmt := fmt.Sprintf(`
SELECT session_id, code, playlist_id, status, created_at, ended_at
FROM sessions WHERE %s = $1`, col)
	if forUpdate {
		stmt += " FOR UPDATE"
	}

	ss := &domain.Session{}
	err := q.QueryRow(ctx, stmt+";", key).
		Scan(&ss.SessionID, &ss.Code, &ss.PlaylistID, &ss.Status, &ss.CreatedAt, &ss.EndedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %s not found", key))
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	const selPlayers = `
SELECT player_id, session_id, nickname, COALESCE(user_id, ''), is_host, joined_at,
       score, songs_correct, total_guesses, attempts, completion_seconds, first_to_finish
FROM players WHERE session_id = $1
ORDER BY joined_at, player_id;`

	rows, err := q.Query(ctx, selPlayers, ss.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	type row struct {
		player *domain.Player
		ftf    *bool
	}

	collected, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		p := &domain.Player{}
		var (
			ledger []byte
			ftf    *bool
		)
		if err := r.Scan(&p.PlayerID, &p.SessionID, &p.Nickname, &p.UserID, &p.IsHost, &p.JoinedAt,
			&p.Score, &p.SongsCorrect, &p.TotalGuesses, &ledger, &p.CompletionSeconds, &ftf); err != nil {
			return row{}, err
		}

		p.Ledger = domain.Ledger{}
		if len(ledger) > 0 {
			if err := json.Unmarshal(ledger, &p.Ledger); err != nil {
				return row{}, fmt.Errorf("unmarshal ledger for player %s: %w", p.PlayerID, err)
			}
		}
		return row{player: p, ftf: ftf}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	multiplayer := len(collected) > 1
	for _, r := range collected {
		r.player.FinishRank = domain.FinishRankOf(r.ftf, multiplayer)
		ss.Players = append(ss.Players, r.player)
	}

	return ss, nil
}

func (s *PGStore) SessionSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('session_seq');`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("session seq: %w", err)
	}
	return seq, nil
}

func (s *PGStore) ActiveCodes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT code FROM sessions WHERE status IN ('WAITING', 'ACTIVE');`)
	if err != nil {
		return nil, fmt.Errorf("active codes: %w", err)
	}

	codes, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (string, error) {
		var code string
		err := r.Scan(&code)
		return code, err
	})
	if err != nil {
		return nil, fmt.Errorf("active codes: %w", err)
	}

	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set, nil
}
