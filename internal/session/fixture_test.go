package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/errors"
	"github.com/ntrung/songclash/internal/event"
	"github.com/ntrung/songclash/internal/session"
)

type fixture struct {
	svc   *session.Service
	store *memStore
	eb    *event.Bus
	rec   *recorder
	clock *fakeClock
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: newMemStore(),
		eb:    event.NewBus(),
		rec:   &recorder{},
		clock: &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.rec.subscribe(f.eb)

	f.svc = session.NewService(session.Config{
		Store: f.store,
		Catalog: fakeCatalog{playlists: map[string][]string{
			"p1":     {"song-a", "song-b", "song-c"},
			"single": {"only-song"},
		}},
		EventBus: f.eb,
		Now:      f.clock.Now,
		RandIntN: func(int) int { return 0 },
	})

	return f
}

func (f *fixture) createSession(t *testing.T, host string) *domain.Session {
	t.Helper()

	ss, err := f.svc.CreateSession(context.Background(), session.CreateSessionRequest{
		PlaylistID:   "p1",
		HostNickname: host,
	})
	require.NoError(t, err)
	return ss
}

func (f *fixture) join(t *testing.T, code, nickname string) *domain.Player {
	t.Helper()

	_, p, err := f.svc.Join(context.Background(), session.JoinRequest{Code: code, Nickname: nickname})
	require.NoError(t, err)
	return p
}

// memStore is an in-memory Store giving UpdateSession the same isolation the
// postgres implementation gets from its row lock: the mutex is held across
// the whole read-modify-write.
type memStore struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]*domain.Session // by session ID
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*domain.Session)}
}

func (m *memStore) seed(s *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s.Clone()
}

func (m *memStore) InsertSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ex := range m.sessions {
		if ex.Status != domain.StatusCompleted && ex.Code == s.Code {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("join code %s is already in use", s.Code))
		}
	}

	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *memStore) ViewSession(_ context.Context, code string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byCode(code)
	if s == nil {
		return nil, notFound(code)
	}
	return s.Clone(), nil
}

func (m *memStore) UpdateSession(_ context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byCode(code)
	if s == nil {
		return nil, notFound(code)
	}
	return m.update(s, fn)
}

func (m *memStore) UpdateSessionByID(_ context.Context, id string, fn func(s *domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return m.update(s, fn)
}

func (m *memStore) update(s *domain.Session, fn func(s *domain.Session) error) (*domain.Session, error) {
	work := s.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}

	if len(work.Players) == 0 {
		delete(m.sessions, work.SessionID)
		return nil, nil
	}

	m.sessions[work.SessionID] = work
	return work.Clone(), nil
}

func (m *memStore) SessionSeq(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	return m.seq, nil
}

func (m *memStore) ActiveCodes(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	codes := make(map[string]struct{})
	for _, s := range m.sessions {
		if s.Status != domain.StatusCompleted {
			codes[s.Code] = struct{}{}
		}
	}
	return codes, nil
}

func (m *memStore) byCode(code string) *domain.Session {
	for _, s := range m.sessions {
		if s.Code == code {
			return s
		}
	}
	return nil
}

func notFound(key string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("session %s not found", key))
}

type fakeCatalog struct {
	playlists map[string][]string
}

func (f fakeCatalog) SongCount(_ context.Context, playlistID string) (int, error) {
	songs, ok := f.playlists[playlistID]
	if !ok {
		return 0, errors.New(errors.CodeNotFound, errors.WithMessagef("playlist %s not found", playlistID))
	}
	return len(songs), nil
}

func (f fakeCatalog) SongIDs(_ context.Context, playlistID string) (map[string]struct{}, error) {
	songs, ok := f.playlists[playlistID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("playlist %s not found", playlistID))
	}

	set := make(map[string]struct{}, len(songs))
	for _, s := range songs {
		set[s] = struct{}{}
	}
	return set, nil
}

// recorder collects every published event for assertions.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) subscribe(eb *event.Bus) {
	names := []string{
		domain.EventNamePlayerJoined,
		domain.EventNamePlayerLeft,
		domain.EventNameHostChanged,
		domain.EventNameScoreUpdated,
		domain.EventNamePlayerCompleted,
		domain.EventNameGameCompleted,
	}
	for _, name := range names {
		eb.Subscribe(name, func(_ context.Context, e event.Event) error {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
			return nil
		})
	}
}

func (r *recorder) named(name string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.Event
	for _, e := range r.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
