// Package score holds the pure scoring rules: per-song points, completion
// bonuses and the experience-point variant used by player progression.
// Nothing in here touches state or I/O.
package score

import (
	"github.com/shopspring/decimal"

	"github.com/ntrung/songclash/internal/domain"
)

const (
	BasePoints = 100

	PerfectGameBonus   = 200
	SpeedRunBonus      = 100
	FirstToFinishBonus = 150

	// SpeedRunLimitSeconds is the completion time at or under which the
	// speed-run bonus is awarded.
	SpeedRunLimitSeconds = 300

	BaseXP = 25
)

// Breakdown itemizes the points awarded for one correct guess.
type Breakdown struct {
	Base         int `json:"base"`
	AttemptBonus int `json:"attempt_bonus"`
	TimeBonus    int `json:"time_bonus"`
}

func (b Breakdown) Total() int { return b.Base + b.AttemptBonus + b.TimeBonus }

// SongPoints returns the points for a guess and their breakdown. Incorrect
// guesses are worth nothing regardless of attempts or speed.
func SongPoints(attempts int, elapsedSeconds float64, correct bool) (int, Breakdown) {
	if !correct {
		return 0, Breakdown{}
	}

	b := Breakdown{
		Base:         BasePoints,
		AttemptBonus: AttemptBonus(attempts),
		TimeBonus:    TimeBonus(elapsedSeconds),
	}
	return b.Total(), b
}

// AttemptBonus rewards low guess counts: 50/25/10 for the first three
// attempts, nothing from the fourth on.
func AttemptBonus(attempts int) int {
	switch attempts {
	case 1:
		return 50
	case 2:
		return 25
	case 3:
		return 10
	default:
		return 0
	}
}

// TimeBonus rewards fast guesses, measured from the first attempt on the
// song. Tier boundaries are inclusive: exactly 5.0s still earns the top tier.
func TimeBonus(elapsedSeconds float64) int {
	switch {
	case elapsedSeconds <= 5:
		return 25
	case elapsedSeconds <= 15:
		return 15
	case elapsedSeconds <= 30:
		return 10
	case elapsedSeconds <= 60:
		return 5
	default:
		return 0
	}
}

// CompletionBonuses are the flat bonuses awarded at most once per player per
// session, each gated by its own condition.
type CompletionBonuses struct {
	PerfectGame   int `json:"perfect_game"`
	SpeedRun      int `json:"speed_run"`
	FirstToFinish int `json:"first_to_finish"`
}

func (b CompletionBonuses) Total() int { return b.PerfectGame + b.SpeedRun + b.FirstToFinish }

// Completion computes the bonuses for a finished player. The first-to-finish
// bonus requires a decided FinishFirst rank; pending and not-applicable ranks
// earn nothing, so single-player sessions can never receive it.
func Completion(songsCompleted, totalSongs, completionSeconds int, rank domain.FinishRank) CompletionBonuses {
	var b CompletionBonuses
	if totalSongs > 0 && songsCompleted == totalSongs {
		b.PerfectGame = PerfectGameBonus
	}
	if completionSeconds <= SpeedRunLimitSeconds {
		b.SpeedRun = SpeedRunBonus
	}
	if rank == domain.FinishFirst {
		b.FirstToFinish = FirstToFinishBonus
	}
	return b
}

// TotalScore is the final session score: the sum of song points plus all
// completion bonuses.
func TotalScore(songPointsSum int, b CompletionBonuses) int {
	return songPointsSum + b.Total()
}

// SongXP mirrors SongPoints with smaller constants, scaled by the player's
// level tier. It feeds the progression system, never the session scoreboard.
func SongXP(attempts int, elapsedSeconds float64, correct bool, level int) int {
	if !correct {
		return 0
	}

	raw := BaseXP + attemptXP(attempts) + timeXP(elapsedSeconds)
	xp := decimal.NewFromInt(int64(raw)).Mul(levelMultiplier(level))
	return int(xp.Round(0).IntPart())
}

func attemptXP(attempts int) int {
	switch attempts {
	case 1:
		return 15
	case 2:
		return 8
	case 3:
		return 3
	default:
		return 0
	}
}

func timeXP(elapsedSeconds float64) int {
	switch {
	case elapsedSeconds <= 5:
		return 10
	case elapsedSeconds <= 15:
		return 6
	case elapsedSeconds <= 30:
		return 4
	case elapsedSeconds <= 60:
		return 2
	default:
		return 0
	}
}

// levelMultiplier returns the XP multiplier for a level tier. Decimal keeps
// the 1.1/1.2 factors exact instead of accumulating float drift.
func levelMultiplier(level int) decimal.Decimal {
	switch {
	case level >= 51:
		return decimal.NewFromFloat(1.5)
	case level >= 26:
		return decimal.NewFromFloat(1.2)
	case level >= 11:
		return decimal.NewFromFloat(1.1)
	default:
		return decimal.NewFromInt(1)
	}
}
