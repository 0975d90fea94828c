package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/event"
)

// Notification is the envelope published on a session's redis channel.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// subscribeEvents wires the gateway to the event bus. Handlers run on the
// bus pool; a failed publish is logged there and never reaches the operation
// that emitted the event.
func (a *API) subscribeEvents(eb *event.Bus) {
	eb.Subscribe(domain.EventNamePlayerJoined, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventPlayerJoined)
		return a.publishNotification(ctx, ev.Session.SessionID, ev.Name(), struct {
			Session sessionView `json:"session"`
			Player  playerView  `json:"player"`
		}{sessionViewOf(&ev.Session), playerViewOf(&ev.Player)})
	})

	eb.Subscribe(domain.EventNamePlayerLeft, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventPlayerLeft)
		return a.publishNotification(ctx, ev.SessionID, ev.Name(), struct {
			SessionID string `json:"session_id"`
			PlayerID  string `json:"player_id"`
			Nickname  string `json:"nickname"`
		}{ev.SessionID, ev.PlayerID, ev.Nickname})
	})

	eb.Subscribe(domain.EventNameHostChanged, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventHostChanged)
		return a.publishNotification(ctx, ev.SessionID, ev.Name(), struct {
			SessionID    string `json:"session_id"`
			HostID       string `json:"host_id"`
			HostNickname string `json:"host_nickname"`
		}{ev.SessionID, ev.HostID, ev.HostNickname})
	})

	eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventScoreUpdated)
		return a.publishNotification(ctx, ev.SessionID, ev.Name(), struct {
			SessionID     string     `json:"session_id"`
			Player        playerView `json:"player"`
			SongID        string     `json:"song_id"`
			Correct       bool       `json:"correct"`
			Points        int        `json:"points"`
			GameCompleted bool       `json:"game_completed"`
		}{ev.SessionID, playerViewOf(&ev.Player), ev.SongID, ev.Correct, ev.Points, ev.GameCompleted})
	})

	eb.Subscribe(domain.EventNamePlayerCompleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventPlayerCompleted)
		return a.publishNotification(ctx, ev.SessionID, ev.Name(), struct {
			SessionID string     `json:"session_id"`
			Player    playerView `json:"player"`
		}{ev.SessionID, playerViewOf(&ev.Player)})
	})

	eb.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventGameCompleted)
		return a.publishNotification(ctx, ev.Session.SessionID, ev.Name(), struct {
			Session sessionView `json:"session"`
		}{sessionViewOf(&ev.Session)})
	})

	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventLeaderboardUpdated)
		l := ev.Leaderboard
		return a.publishNotification(ctx, l.SessionID, ev.Name(), leaderboardViewOf(&l))
	})
}

func (a *API) publishNotification(ctx context.Context, sessionID, name string, data any) error {
	n := Notification{
		Event: name,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", name, err)
	}

	return a.redis.Publish(ctx, a.sessionChannel(sessionID), b).Err()
}

func (a *API) sessionChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, sessionID)
}
