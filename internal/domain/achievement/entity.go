// Package achievement defines the static achievement catalog and the rule
// predicates evaluated against a student's counters.
package achievement

import (
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
)

// RequirementType selects the predicate of a catalog entry.
type RequirementType string

const (
	RequirementProblemsSolved RequirementType = "problems_solved"
	RequirementStreak         RequirementType = "streak"
	RequirementLevel          RequirementType = "level"
	RequirementCorrectStreak  RequirementType = "correct_streak"
	RequirementCombo          RequirementType = "combo"
)

// IsValid reports whether t is a known requirement type.
func (t RequirementType) IsValid() bool {
	switch t {
	case RequirementProblemsSolved, RequirementStreak, RequirementLevel,
		RequirementCorrectStreak, RequirementCombo:
		return true
	default:
		return false
	}
}

// Rarity grades how hard an achievement is to get.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Requirement is the threshold a student must meet.
type Requirement struct {
	Type  RequirementType
	Value int
}

// Definition is one catalog entry.
type Definition struct {
	Key         string
	Name        string
	Description string
	Requirement Requirement
	Reward      reward.Bundle
	Rarity      Rarity
}

// StudentAchievement records an unlock. It is created once per
// (StudentID, AchievementKey) and never modified.
type StudentAchievement struct {
	StudentID      string
	AchievementKey string
	UnlockedAt     time.Time
}
