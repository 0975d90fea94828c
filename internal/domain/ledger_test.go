package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntrung/songclash/internal/domain"
)

func TestLedger_Record(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	l := domain.Ledger{}
	l.Record("song-a", false, t0)
	l.Record("song-a", false, t0.Add(4*time.Second))
	e := l.Record("song-a", true, t0.Add(10*time.Second))

	assert.Equal(t, 3, e.Attempts)
	assert.True(t, e.Correct)
	assert.Equal(t, t0.UnixMilli(), e.StartedAt, "start time must stay at the first guess")
	assert.Equal(t, t0.Add(10*time.Second).UnixMilli(), e.UpdatedAt)
	assert.Equal(t, 10*time.Second, e.Elapsed(t0.Add(10*time.Second)))
}

func TestLedger_Span(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	l := domain.Ledger{}
	_, ok := l.Span()
	assert.False(t, ok, "empty ledger has no span")

	l.Record("song-a", true, t0)
	l.Record("song-b", false, t0.Add(20*time.Second))
	l.Record("song-b", true, t0.Add(45*time.Second))

	span, ok := l.Span()
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, span)
}

func TestLedger_JSONRoundTrip(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	l := domain.Ledger{}
	l.Record("song-a", false, t0)
	l.Record("song-a", true, t0.Add(7*time.Second))
	l.Record("song-b", false, t0.Add(30*time.Second))

	b, err := json.Marshal(l)
	require.NoError(t, err)

	var got domain.Ledger
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, l, got)
}

func TestFinishRank(t *testing.T) {
	assert.Nil(t, domain.FinishNotApplicable.Bool())
	assert.Nil(t, domain.FinishPending.Bool())
	require.NotNil(t, domain.FinishFirst.Bool())
	assert.True(t, *domain.FinishFirst.Bool())
	require.NotNil(t, domain.FinishNotFirst.Bool())
	assert.False(t, *domain.FinishNotFirst.Bool())

	f := false
	assert.Equal(t, domain.FinishNotFirst, domain.FinishRankOf(&f, true))
	assert.Equal(t, domain.FinishPending, domain.FinishRankOf(nil, true))
	assert.Equal(t, domain.FinishNotApplicable, domain.FinishRankOf(nil, false))
}
