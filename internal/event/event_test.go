package event_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	score := func(sessionID, nickname string, points int) domain.EventScoreUpdated {
		return domain.EventScoreUpdated{
			SessionID: sessionID,
			Player:    domain.Player{Nickname: nickname},
			Points:    points,
		}
	}
	completed := func(sessionID string) domain.EventGameCompleted {
		return domain.EventGameCompleted{Session: domain.Session{SessionID: sessionID}}
	}

	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber only receives the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						score("s1", "alice", 175),
						completed("s1"),
					},
					subscribers: []subscriber{
						{
							name:        "leaderboard",
							subscribeTo: []string{domain.EventNameScoreUpdated},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{score("s1", "alice", 175)}, out.received["leaderboard"])
			},
		},

		"every score update reaches the subscriber with its payload intact": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						score("s1", "alice", 175),
						score("s1", "bob", 135),
					},
					subscribers: []subscriber{
						{
							name:        "leaderboard",
							subscribeTo: []string{domain.EventNameScoreUpdated},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{
					score("s1", "alice", 175),
					score("s1", "bob", 135),
				}, out.received["leaderboard"])
			},
		},

		"a game completion fans out to every subscriber": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						completed("s1"),
					},
					subscribers: []subscriber{
						{
							name:        "gateway",
							subscribeTo: []string{domain.EventNameGameCompleted},
						},
						{
							name:        "leaderboard",
							subscribeTo: []string{domain.EventNameGameCompleted},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed("s1")}, out.received["gateway"])
				assert.ElementsMatch(t, []event.Event{completed("s1")}, out.received["leaderboard"])
			},
		},

		"mixed subscriptions dispatch by event name": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						score("s1", "alice", 175),
						completed("s1"),
						score("s2", "bob", 135),
						domain.EventPlayerLeft{SessionID: "s2", Nickname: "carol"},
					},
					subscribers: []subscriber{
						{
							name:        "leaderboard",
							subscribeTo: []string{domain.EventNameScoreUpdated, domain.EventNameGameCompleted},
						},
						{
							name:        "gateway",
							subscribeTo: []string{domain.EventNamePlayerLeft},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{
					score("s1", "alice", 175),
					completed("s1"),
					score("s2", "bob", 135),
				}, out.received["leaderboard"])
				assert.ElementsMatch(t, []event.Event{
					domain.EventPlayerLeft{SessionID: "s2", Nickname: "carol"},
				}, out.received["gateway"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				s := s
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

// TestBus_HandlerPanic checks that a panicking subscriber is contained: the
// other subscribers of the same event still run, and Stop returns.
func TestBus_HandlerPanic(t *testing.T) {
	b := event.NewBus()

	b.Subscribe(domain.EventNameScoreUpdated, func(context.Context, event.Event) error {
		panic("broken subscriber")
	})

	var (
		mu    sync.Mutex
		count int
	)
	b.Subscribe(domain.EventNameScoreUpdated, func(context.Context, event.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), domain.EventScoreUpdated{SessionID: "s1"})
	b.Stop()

	assert.Equal(t, 1, count)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
