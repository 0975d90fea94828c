package api_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ntrung/songclash/internal/api"
	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/event"
)

func TestPublishNotifications(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err())

	eb := event.NewBus()
	api.New(api.Config{
		Router:       gin.New(),
		EventBus:     eb,
		Redis:        rc,
		PubsubPrefix: "test",
	})

	sub := rc.Subscribe(ctx, "test:session:s1")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx) // wait for the subscription to be live
	require.NoError(t, err)

	eb.Publish(ctx, domain.EventPlayerLeft{
		SessionID: "s1",
		PlayerID:  "p1",
		Nickname:  "alice",
	})
	eb.Stop()

	select {
	case msg := <-sub.Channel():
		var n struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		require.Equal(t, domain.EventNamePlayerLeft, n.Event)

		var data struct {
			SessionID string `json:"session_id"`
			PlayerID  string `json:"player_id"`
			Nickname  string `json:"nickname"`
		}
		require.NoError(t, json.Unmarshal(n.Data, &data))
		require.Equal(t, "s1", data.SessionID)
		require.Equal(t, "p1", data.PlayerID)
		require.Equal(t, "alice", data.Nickname)

	case <-ctx.Done():
		t.Fatal("timed out waiting for the notification")
	}
}
