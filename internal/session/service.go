// Package session implements the game-session coordinator: lifecycle
// transitions, guess processing against the per-player attempt ledger,
// completion detection and the first-to-finish decision.
package session

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/errors"
	"github.com/ntrung/songclash/internal/event"
	"github.com/ntrung/songclash/internal/score"
	"github.com/ntrung/songclash/internal/telemetry"
)

// MaxPlayers is the participant cap per session.
const MaxPlayers = 8

// Catalog is the read-only playlist collaborator. The coordinator only ever
// asks for the song population of a playlist, never mutates it.
type Catalog interface {
	SongCount(ctx context.Context, playlistID string) (int, error)
	SongIDs(ctx context.Context, playlistID string) (map[string]struct{}, error)
}

type Config struct {
	Store    Store
	Catalog  Catalog
	EventBus *event.Bus

	// Now, RandIntN and Level are injectable for tests; Level maps a linked
	// user to their progression level and defaults to level 1.
	Now      func() time.Time
	RandIntN func(n int) int
	Level    func(ctx context.Context, userID string) int
}

type Service struct {
	store    Store
	catalog  Catalog
	eb       *event.Bus
	now      func() time.Time
	randIntN func(n int) int
	level    func(ctx context.Context, userID string) int
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		catalog:  c.Catalog,
		eb:       c.EventBus,
		now:      c.Now,
		randIntN: c.RandIntN,
		level:    c.Level,
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.randIntN == nil {
		s.randIntN = defaultRandIntN
	}
	if s.level == nil {
		s.level = func(context.Context, string) int { return 1 }
	}

	return s
}

type CreateSessionRequest struct {
	PlaylistID   string
	HostNickname string
	// HostUserID is empty for guest hosts.
	HostUserID string
}

// CreateSession validates the host nickname, allocates a unique join code and
// creates a WAITING session with the host as its first player.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	nick, err := validateNickname(req.HostNickname)
	if err != nil {
		return nil, err
	}

	total, err := s.catalog.SongCount(ctx, req.PlaylistID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("playlist %q has no songs", req.PlaylistID))
	}

	code, err := s.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	sid, err := newID()
	if err != nil {
		return nil, err
	}
	pid, err := newID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	ss := &domain.Session{
		SessionID:  sid,
		Code:       code,
		PlaylistID: req.PlaylistID,
		Status:     domain.StatusWaiting,
		CreatedAt:  now,
		Players: []*domain.Player{{
			PlayerID:  pid,
			SessionID: sid,
			Nickname:  nick,
			UserID:    req.HostUserID,
			IsHost:    true,
			JoinedAt:  now,
			Ledger:    domain.Ledger{},
		}},
	}

	if err := s.store.InsertSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	telemetry.SessionsCreated.Inc()
	return ss, nil
}

type JoinRequest struct {
	Code     string
	Nickname string
	UserID   string
}

// Join adds a player to a WAITING session. The nickname must be valid, free
// within the session (ignoring case) and the participant cap not reached.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*domain.Session, *domain.Player, error) {
	nick, err := validateNickname(req.Nickname)
	if err != nil {
		return nil, nil, err
	}

	var playerID string
	ss, err := s.store.UpdateSession(ctx, req.Code, func(se *domain.Session) error {
		if se.Status != domain.StatusWaiting {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s is not joinable", se.Code))
		}
		if se.NicknameTaken(nick) {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("nickname %q is already taken", nick))
		}
		if len(se.Players) >= MaxPlayers {
			return errors.New(errors.CodeResourceExhausted,
				errors.WithMessagef("session %s is full", se.Code))
		}

		playerID, err = newID()
		if err != nil {
			return err
		}

		se.Players = append(se.Players, &domain.Player{
			PlayerID:  playerID,
			SessionID: se.SessionID,
			Nickname:  nick,
			UserID:    req.UserID,
			JoinedAt:  s.now(),
			Ledger:    domain.Ledger{},
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	joined := ss.Player(playerID)
	s.eb.Publish(ctx, domain.EventPlayerJoined{
		Session: *ss.Clone(),
		Player:  *joined.Clone(),
	})

	return ss, joined, nil
}

type LeaveRequest struct {
	SessionID string
	PlayerID  string
}

type LeaveResult struct {
	// Deleted is set when the departing player was the last one and the
	// whole session was removed.
	Deleted   bool
	NewHostID string
}

// Leave removes a player. The last player to leave takes the session with
// them; otherwise host status transfers to the next-oldest player if needed.
func (s *Service) Leave(ctx context.Context, req LeaveRequest) (*LeaveResult, error) {
	var (
		removed *domain.Player
		newHost *domain.Player
	)

	ss, err := s.store.UpdateSessionByID(ctx, req.SessionID, func(se *domain.Session) error {
		p := se.Player(req.PlayerID)
		if p == nil {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("player %s not found in session %s", req.PlayerID, se.Code))
		}
		removed = p.Clone()

		rest := se.Players[:0]
		for _, o := range se.Players {
			if o.PlayerID != req.PlayerID {
				rest = append(rest, o)
			}
		}
		se.Players = rest

		if removed.IsHost && len(se.Players) > 0 {
			se.Players[0].IsHost = true
			newHost = se.Players[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ss == nil {
		// Session deleted with its last player; nothing left to notify.
		return &LeaveResult{Deleted: true}, nil
	}

	res := &LeaveResult{}
	if newHost != nil {
		res.NewHostID = newHost.PlayerID
		s.eb.Publish(ctx, domain.EventHostChanged{
			SessionID:    ss.SessionID,
			HostID:       newHost.PlayerID,
			HostNickname: newHost.Nickname,
		})
	}

	s.eb.Publish(ctx, domain.EventPlayerLeft{
		SessionID: ss.SessionID,
		PlayerID:  removed.PlayerID,
		Nickname:  removed.Nickname,
	})

	return res, nil
}

// Start transitions a session from WAITING to ACTIVE. Any other current
// status is rejected; no transition may be skipped.
func (s *Service) Start(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.UpdateSessionByID(ctx, sessionID, func(se *domain.Session) error {
		if se.Status != domain.StatusWaiting {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s cannot start from status %s", se.Code, se.Status))
		}
		se.Status = domain.StatusActive
		return nil
	})
}

type GuessRequest struct {
	SessionCode string
	PlayerID    string
	SongID      string
	Correct     bool
}

type GuessResult struct {
	Points         int                     `json:"points"`
	Breakdown      score.Breakdown         `json:"breakdown"`
	TotalScore     int                     `json:"total_score"`
	Attempts       int                     `json:"attempts"`
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
	Correct        bool                    `json:"correct"`
	SongsCompleted int                     `json:"songs_completed"`
	XP             int                     `json:"xp"`
	Completed      bool                    `json:"completed"`
	GameCompleted  bool                    `json:"game_completed"`
	FirstToFinish  *bool                   `json:"first_to_finish"`
	Bonuses        score.CompletionBonuses `json:"bonuses"`
}

// RecordGuess applies one guess: ledger update, scoring on a correct answer
// and completion evaluation, all inside a single store transaction holding
// the session lock, so two players finishing in the same instant cannot both
// observe "nobody else is done".
func (s *Service) RecordGuess(ctx context.Context, req GuessRequest) (*GuessResult, error) {
	total, err := s.playlistSongs(ctx, req.SessionCode, req.SongID)
	if err != nil {
		return nil, err
	}

	var (
		res    GuessResult
		events []event.Event
	)
	_, err = s.store.UpdateSession(ctx, req.SessionCode, func(se *domain.Session) error {
		events = nil

		// A session must be started before it can take guesses; allowing
		// them while WAITING would let a completed guess jump the session
		// straight to COMPLETED.
		if se.Status == domain.StatusWaiting {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("session %s has not started", se.Code))
		}

		p := se.Player(req.PlayerID)
		if p == nil {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("player %s not found in session %s", req.PlayerID, se.Code))
		}

		if e := p.Ledger[req.SongID]; e != nil && e.Correct {
			// Already scored; replaying the guess must never double-count.
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("song %s is already solved by player %s", req.SongID, p.Nickname))
		}

		now := s.now()
		entry := p.Ledger.Record(req.SongID, req.Correct, now)
		p.TotalGuesses++

		elapsed := entry.Elapsed(now).Seconds()
		res = GuessResult{
			Attempts:       entry.Attempts,
			ElapsedSeconds: elapsed,
			Correct:        req.Correct,
		}

		if req.Correct {
			pts, breakdown := score.SongPoints(entry.Attempts, elapsed, true)
			p.Score += pts
			p.SongsCorrect++
			res.Points, res.Breakdown = pts, breakdown
			if p.UserID != "" {
				res.XP = score.SongXP(entry.Attempts, elapsed, true, s.level(ctx, p.UserID))
			}
		}

		out := s.evaluateCompletion(se, p, total, now)
		res.SongsCompleted = p.SongsCorrect
		res.TotalScore = p.Score
		res.Completed = out.playerDone
		res.GameCompleted = out.gameDone
		res.FirstToFinish = p.FinishRank.Bool()
		res.Bonuses = out.bonuses

		snapshot := *p.Clone()
		events = append(events, domain.EventScoreUpdated{
			SessionID:     se.SessionID,
			Player:        snapshot,
			SongID:        req.SongID,
			Correct:       req.Correct,
			Points:        res.Points,
			XP:            res.XP,
			GameCompleted: out.gameDone,
		})
		if out.playerFinished {
			events = append(events, domain.EventPlayerCompleted{SessionID: se.SessionID, Player: snapshot})
		}
		if out.sessionFinished {
			events = append(events, domain.EventGameCompleted{Session: *se.Clone()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.Guesses.WithLabelValues(strconv.FormatBool(req.Correct)).Inc()
	for _, e := range events {
		if _, ok := e.(domain.EventGameCompleted); ok {
			telemetry.SessionsCompleted.Inc()
		}
		s.eb.Publish(ctx, e)
	}

	return &res, nil
}

type CompleteRequest struct {
	SessionCode string
	PlayerID    string
}

type CompletionResult struct {
	FinalScore        int                     `json:"final_score"`
	SongsCompleted    int                     `json:"songs_completed"`
	CompletionSeconds int                     `json:"completion_seconds"`
	FirstToFinish     *bool                   `json:"first_to_finish"`
	Bonuses           score.CompletionBonuses `json:"bonuses"`
	GameCompleted     bool                    `json:"game_completed"`
}

// CompletePlayer finalizes a player who has answered every song. It is
// idempotent: repeated calls observe the recorded completion and re-read it
// without touching the score or re-broadcasting the game-completed event.
func (s *Service) CompletePlayer(ctx context.Context, req CompleteRequest) (*CompletionResult, error) {
	snap, err := s.store.ViewSession(ctx, req.SessionCode)
	if err != nil {
		return nil, err
	}
	total, err := s.catalog.SongCount(ctx, snap.PlaylistID)
	if err != nil {
		return nil, err
	}

	var (
		res    CompletionResult
		events []event.Event
	)
	_, err = s.store.UpdateSession(ctx, req.SessionCode, func(se *domain.Session) error {
		events = nil

		p := se.Player(req.PlayerID)
		if p == nil {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("player %s not found in session %s", req.PlayerID, se.Code))
		}
		if p.SongsCorrect < total {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("player %s has completed %d of %d songs", p.Nickname, p.SongsCorrect, total))
		}

		out := s.evaluateCompletion(se, p, total, s.now())
		res = CompletionResult{
			FinalScore:        p.Score,
			SongsCompleted:    p.SongsCorrect,
			CompletionSeconds: *p.CompletionSeconds,
			FirstToFinish:     p.FinishRank.Bool(),
			Bonuses:           out.bonuses,
			GameCompleted:     out.gameDone,
		}

		if out.playerFinished {
			events = append(events, domain.EventPlayerCompleted{SessionID: se.SessionID, Player: *p.Clone()})
		}
		if out.sessionFinished {
			events = append(events, domain.EventGameCompleted{Session: *se.Clone()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		if _, ok := e.(domain.EventGameCompleted); ok {
			telemetry.SessionsCompleted.Inc()
		}
		s.eb.Publish(ctx, e)
	}

	return &res, nil
}

// View returns a read-only snapshot of a session by join code.
func (s *Service) View(ctx context.Context, code string) (*domain.Session, error) {
	return s.store.ViewSession(ctx, code)
}

type completionOutcome struct {
	playerDone      bool // the player has answered every song
	playerFinished  bool // this call recorded the player's completion
	gameDone        bool // some player has answered every song
	sessionFinished bool // this call transitioned the session to COMPLETED
	bonuses         score.CompletionBonuses
}

// evaluateCompletion is the single place completion is decided, shared by
// guess processing and explicit finalization. It must run against the
// snapshot held by the store transaction: the first-to-finish rank is read
// from the same locked player list the completion write goes to, which keeps
// the rank unique per session under concurrent finishes.
func (s *Service) evaluateCompletion(se *domain.Session, p *domain.Player, totalSongs int, now time.Time) completionOutcome {
	var out completionOutcome
	if totalSongs <= 0 {
		return out
	}

	out.playerDone = p.SongsCorrect >= totalSongs
	switch {
	case out.playerDone && p.CompletionSeconds == nil:
		secs := 0
		if span, ok := p.Ledger.Span(); ok {
			secs = int(math.Round(span.Seconds()))
		}
		p.CompletionSeconds = &secs

		if !se.Multiplayer() {
			p.FinishRank = domain.FinishNotApplicable
		} else if othersDone(se, p, totalSongs) {
			p.FinishRank = domain.FinishNotFirst
		} else {
			p.FinishRank = domain.FinishFirst
		}

		out.bonuses = score.Completion(p.SongsCorrect, totalSongs, secs, p.FinishRank)
		p.Score += out.bonuses.Total()
		out.playerFinished = true

	case out.playerDone:
		// Already finalized earlier; recompute the bonuses for display only.
		out.bonuses = score.Completion(p.SongsCorrect, totalSongs, *p.CompletionSeconds, p.FinishRank)
	}

	for _, o := range se.Players {
		if o.SongsCorrect >= totalSongs {
			out.gameDone = true
			break
		}
	}

	if out.gameDone && se.Status != domain.StatusCompleted {
		se.Status = domain.StatusCompleted
		t := now
		se.EndedAt = &t
		out.sessionFinished = true
	}

	return out
}

func othersDone(se *domain.Session, p *domain.Player, totalSongs int) bool {
	for _, o := range se.Players {
		if o.PlayerID != p.PlayerID && o.SongsCorrect >= totalSongs {
			return true
		}
	}
	return false
}

// playlistSongs resolves the session's playlist and checks the guessed song
// belongs to it, returning the playlist size. Runs before the store
// transaction to keep the session lock short.
func (s *Service) playlistSongs(ctx context.Context, code, songID string) (int, error) {
	snap, err := s.store.ViewSession(ctx, code)
	if err != nil {
		return 0, err
	}

	ids, err := s.catalog.SongIDs(ctx, snap.PlaylistID)
	if err != nil {
		return 0, err
	}
	if _, ok := ids[songID]; !ok {
		return 0, errors.New(errors.CodeNotFound,
			errors.WithMessagef("song %s is not in playlist %s", songID, snap.PlaylistID))
	}

	return len(ids), nil
}

var nicknameRE = regexp.MustCompile(`^[\p{L}\p{N} _-]{2,20}$`)

func validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if !nicknameRE.MatchString(nickname) {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("nickname must be 2-20 letters, digits, spaces, hyphens or underscores"))
	}
	return nickname, nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}
