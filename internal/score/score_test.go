package score_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ntrung/songclash/internal/domain"
	"github.com/ntrung/songclash/internal/score"
)

func TestSongPoints(t *testing.T) {
	tests := []struct {
		attempts int
		elapsed  float64
		correct  bool
		want     int
	}{
		{attempts: 1, elapsed: 0, correct: true, want: 175},
		{attempts: 1, elapsed: 5, correct: true, want: 175},    // tie at 5.0s stays in the top tier
		{attempts: 1, elapsed: 5.01, correct: true, want: 165}, // just past the boundary
		{attempts: 1, elapsed: 15, correct: true, want: 165},
		{attempts: 1, elapsed: 30, correct: true, want: 160},
		{attempts: 1, elapsed: 60, correct: true, want: 155},
		{attempts: 1, elapsed: 61, correct: true, want: 150},
		{attempts: 2, elapsed: 5, correct: true, want: 150},
		{attempts: 2, elapsed: 20, correct: true, want: 135},
		{attempts: 3, elapsed: 15, correct: true, want: 125},
		{attempts: 4, elapsed: 30, correct: true, want: 110},
		{attempts: 4, elapsed: 61, correct: true, want: 100},
		{attempts: 5, elapsed: 61, correct: true, want: 100},

		{attempts: 1, elapsed: 0, correct: false, want: 0},
		{attempts: 5, elapsed: 61, correct: false, want: 0},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("attempts=%d elapsed=%v correct=%v", tt.attempts, tt.elapsed, tt.correct)
		t.Run(name, func(t *testing.T) {
			got, breakdown := score.SongPoints(tt.attempts, tt.elapsed, tt.correct)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, breakdown.Total(), "breakdown should add up to the points")
			if tt.correct {
				assert.Equal(t, score.BasePoints, breakdown.Base)
			}
		})
	}
}

func TestCompletion(t *testing.T) {
	tests := map[string]struct {
		songsCompleted    int
		totalSongs        int
		completionSeconds int
		rank              domain.FinishRank
		want              score.CompletionBonuses
	}{
		"perfect fast first": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 120, rank: domain.FinishFirst,
			want: score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100, FirstToFinish: 150},
		},
		"speed run boundary is inclusive": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 300, rank: domain.FinishNotApplicable,
			want: score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100},
		},
		"slow run earns no speed bonus": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 301, rank: domain.FinishNotApplicable,
			want: score.CompletionBonuses{PerfectGame: 200},
		},
		"second place earns no finish bonus": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 120, rank: domain.FinishNotFirst,
			want: score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100},
		},
		"pending rank earns no finish bonus": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 120, rank: domain.FinishPending,
			want: score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100},
		},
		"single player never gets the finish bonus": {
			songsCompleted: 3, totalSongs: 3, completionSeconds: 120, rank: domain.FinishNotApplicable,
			want: score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := score.Completion(tt.songsCompleted, tt.totalSongs, tt.completionSeconds, tt.rank)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalScore(t *testing.T) {
	b := score.CompletionBonuses{PerfectGame: 200, SpeedRun: 100}
	assert.Equal(t, 785, score.TotalScore(485, b))
}

func TestSongXP(t *testing.T) {
	tests := []struct {
		attempts int
		elapsed  float64
		correct  bool
		level    int
		want     int
	}{
		{attempts: 1, elapsed: 5, correct: true, level: 1, want: 50},   // 25+15+10, x1.0
		{attempts: 1, elapsed: 5, correct: true, level: 10, want: 50},  // still tier one
		{attempts: 1, elapsed: 5, correct: true, level: 11, want: 55},  // x1.1
		{attempts: 1, elapsed: 5, correct: true, level: 26, want: 60},  // x1.2
		{attempts: 1, elapsed: 5, correct: true, level: 51, want: 75},  // x1.5
		{attempts: 2, elapsed: 20, correct: true, level: 1, want: 37},  // 25+8+4
		{attempts: 4, elapsed: 61, correct: true, level: 1, want: 25},  // base only
		{attempts: 1, elapsed: 5, correct: false, level: 51, want: 0},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("attempts=%d elapsed=%v level=%d", tt.attempts, tt.elapsed, tt.level)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, score.SongXP(tt.attempts, tt.elapsed, tt.correct, tt.level))
		})
	}
}
