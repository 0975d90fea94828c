package domain

import "time"

// AttemptEntry records a player's guessing history for one song. StartedAt is
// the time of the first guess and never moves afterwards; elapsed time for
// scoring is always measured against it.
type AttemptEntry struct {
	SongID    string `json:"song_id"`
	Attempts  int    `json:"attempts"`
	StartedAt int64  `json:"started_at"` // unix milliseconds of the first guess
	UpdatedAt int64  `json:"updated_at"` // unix milliseconds of the latest guess
	Correct   bool   `json:"correct"`
}

// Elapsed returns the time between the first guess and now.
func (e *AttemptEntry) Elapsed(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.StartedAt))
}

// Ledger maps song IDs to the player's attempt history. The value is
// persisted as a JSON document and must round-trip losslessly.
type Ledger map[string]*AttemptEntry

// Record applies one guess to the ledger and returns the updated entry. The
// correctness flag always reflects the latest guess; whether a song may be
// guessed again after a correct answer is the coordinator's call, not the
// ledger's.
func (l Ledger) Record(songID string, correct bool, now time.Time) *AttemptEntry {
	ms := now.UnixMilli()
	e, ok := l[songID]
	if !ok {
		e = &AttemptEntry{SongID: songID, StartedAt: ms}
		l[songID] = e
	}
	e.Attempts++
	e.UpdatedAt = ms
	e.Correct = correct
	return e
}

// Span returns the duration between the first guess on any song and the
// latest guess on any song, used as the player's completion time. ok is false
// for an empty ledger.
func (l Ledger) Span() (d time.Duration, ok bool) {
	var first, last int64
	for _, e := range l {
		if first == 0 || e.StartedAt < first {
			first = e.StartedAt
		}
		if e.UpdatedAt > last {
			last = e.UpdatedAt
		}
	}
	if first == 0 {
		return 0, false
	}
	return time.Duration(last-first) * time.Millisecond, true
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	c := make(Ledger, len(l))
	for id, e := range l {
		v := *e
		c[id] = &v
	}
	return c
}
