package reward

import (
	"math"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// Policy holds the tunable constants of the per-attempt reward formula.
type Policy struct {
	FirstTryBonus int64
	SpeedBonus    int64
	// StreakMultiplier applies when the daily streak is above StreakBonusThreshold.
	StreakMultiplier     float64
	StreakBonusThreshold int
	// CoinsPerCorrect is paid flatly, independent of bonuses.
	CoinsPerCorrect int64
}

// DefaultPolicy returns the production reward constants.
func DefaultPolicy() Policy {
	return Policy{
		FirstTryBonus:        5,
		SpeedBonus:           5,
		StreakMultiplier:     1.5,
		StreakBonusThreshold: 2,
		CoinsPerCorrect:      5,
	}
}

// Validate checks that no constant would produce a negative reward.
func (p Policy) Validate() error {
	if p.FirstTryBonus < 0 || p.SpeedBonus < 0 || p.CoinsPerCorrect < 0 ||
		p.StreakMultiplier < 1 || p.StreakBonusThreshold < 0 {
		return shared.ErrInvalidRewardPolicy
	}
	return nil
}

// AttemptInput is what the policy needs to price one attempt.
type AttemptInput struct {
	IsCorrect     bool
	PointValue    int64
	AttemptNumber int
	TimeSpent     time.Duration
	EstimatedTime time.Duration
	CurrentStreak int
}

// ForAttempt prices an attempt. Incorrect answers earn nothing.
//
//	xp = pointValue + firstTry + speed, then floor(xp * multiplier) on a hot streak
func (p Policy) ForAttempt(in AttemptInput) Bundle {
	if !in.IsCorrect {
		return Bundle{}
	}

	xp := in.PointValue
	if in.AttemptNumber == 1 {
		xp += p.FirstTryBonus
	}
	if in.TimeSpent < in.EstimatedTime {
		xp += p.SpeedBonus
	}
	if in.CurrentStreak > p.StreakBonusThreshold {
		xp = int64(math.Floor(float64(xp) * p.StreakMultiplier))
	}

	return Bundle{XP: xp, Coins: p.CoinsPerCorrect}
}
