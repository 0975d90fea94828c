package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/errors"
	"github.com/ntrung/songclash/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond

	// completedTTL keeps a finished session's scoreboard readable for a
	// while before redis reclaims it.
	completedTTL = 24 * time.Hour
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service maintains one sorted set per session as the live scoreboard, plus
// a global experience-point board for identity-linked players. It feeds off
// score.updated events and debounces its own leaderboard.updated broadcasts.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.ApplyScore(ctx, e.(domain.EventScoreUpdated))
	})
	s.eb.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		return s.ExpireSession(ctx, e.(domain.EventGameCompleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	SessionID string
}

// GetLeaderboard returns the session scoreboard, highest score first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(req.SessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("leaderboard not found: session=%s", req.SessionID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Nickname: z.Member.(string),
			Score:    z.Score,
		})
	}

	return &domain.Leaderboard{
		SessionID: req.SessionID,
		Entries:   entries,
	}, nil
}

// ApplyScore overwrites the player's scoreboard entry and accumulates XP for
// linked users, then schedules a leaderboard broadcast.
func (s *Service) ApplyScore(ctx context.Context, e domain.EventScoreUpdated) error {
	p := e.Player

	if err := s.redis.ZAdd(ctx, s.boardKey(e.SessionID), redis.Z{
		Score:  float64(p.Score),
		Member: p.Nickname,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	if p.UserID != "" && e.XP > 0 {
		if err := s.redis.ZIncrBy(ctx, s.xpKey(), float64(e.XP), p.UserID).Err(); err != nil {
			return fmt.Errorf("update xp board: %w", err)
		}
	}

	return s.schedulePublish(ctx, e.SessionID)
}

// ExpireSession puts a TTL on a finished session's scoreboard.
func (s *Service) ExpireSession(ctx context.Context, e domain.EventGameCompleted) error {
	ss := e.Session
	if err := s.redis.Expire(ctx, s.boardKey(ss.SessionID), completedTTL).Err(); err != nil {
		return fmt.Errorf("expire leaderboard: %w", err)
	}
	return nil
}

type TopXPRequest struct {
	Limit int64
}

type XPEntry struct {
	UserID string
	XP     float64
}

// TopXP returns the highest-XP linked users across all sessions.
func (s *Service) TopXP(ctx context.Context, req TopXPRequest) ([]XPEntry, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.xpKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get xp board: %w", err)
	}

	entries := make([]XPEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, XPEntry{
			UserID: z.Member.(string),
			XP:     z.Score,
		})
	}
	return entries, nil
}

// schedulePublish broadcasts the leaderboard at most once per interval per
// session. A SetNX gate absorbs the burst when several players guess within
// the same window; this also keeps multiple service instances from all
// broadcasting.
func (s *Service) schedulePublish(ctx context.Context, sessionID string) error {
	ok, err := s.redis.SetNX(ctx, s.gateKey(sessionID), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: session=%s: %w", sessionID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})
	return nil
}

func (s *Service) boardKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, sessionID)
}

func (s *Service) gateKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:publish", s.prefix, sessionID)
}

func (s *Service) xpKey() string {
	return fmt.Sprintf("%s:xp", s.prefix)
}
