package achievement

import (
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// Catalog is an immutable, key-indexed set of definitions.
type Catalog struct {
	defs  []Definition
	byKey map[string]Definition
}

// NewCatalog validates and indexes definitions. Keys must be unique and
// thresholds positive.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, 0, len(defs)),
		byKey: make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		if d.Key == "" {
			return nil, shared.ValidationError("achievement", "NewCatalog", "achievement key is required")
		}
		if _, dup := c.byKey[d.Key]; dup {
			return nil, shared.NewDomainError("achievement", "NewCatalog", shared.ErrAlreadyExists, fmt.Sprintf("duplicate achievement key %q", d.Key))
		}
		if !d.Requirement.Type.IsValid() || d.Requirement.Value <= 0 {
			return nil, shared.ValidationError("achievement", "NewCatalog", fmt.Sprintf("invalid requirement for %q", d.Key))
		}
		if err := d.Reward.Validate(); err != nil {
			return nil, fmt.Errorf("achievement %q: %w", d.Key, err)
		}
		c.defs = append(c.defs, d)
		c.byKey[d.Key] = d
	}
	return c, nil
}

// MustCatalog panics on an invalid catalog. For package-level defaults.
func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns ErrAchievementNotFound for an unknown key.
func (c *Catalog) Get(key string) (Definition, error) {
	d, ok := c.byKey[key]
	if !ok {
		return Definition{}, shared.ErrAchievementNotFound
	}
	return d, nil
}

// AttemptWindow returns how many recent attempts the correct_streak rules
// still locked for the student need to look at. 0 means none are pending.
func (c *Catalog) AttemptWindow(unlocked map[string]bool) int {
	n := 0
	for _, d := range c.defs {
		if d.Requirement.Type == RequirementCorrectStreak && !unlocked[d.Key] {
			n = max(n, d.Requirement.Value)
		}
	}
	return n
}

// DefaultCatalog is the shipped achievement set.
var DefaultCatalog = MustCatalog([]Definition{
	{
		Key: "first_steps", Name: "First Steps", Description: "Answer your first problem",
		Requirement: Requirement{RequirementProblemsSolved, 1},
		Reward:      reward.Bundle{Coins: 10},
		Rarity:      RarityCommon,
	},
	{
		Key: "problems_50", Name: "Warming Up", Description: "Answer 50 problems",
		Requirement: Requirement{RequirementProblemsSolved, 50},
		Reward:      reward.Bundle{Coins: 50, XP: 25},
		Rarity:      RarityCommon,
	},
	{
		Key: "problems_500", Name: "Number Cruncher", Description: "Answer 500 problems",
		Requirement: Requirement{RequirementProblemsSolved, 500},
		Reward:      reward.Bundle{Coins: 250, XP: 100, Gems: 5},
		Rarity:      RarityRare,
	},
	{
		Key: "streak_3", Name: "Habit Forming", Description: "Practice 3 days in a row",
		Requirement: Requirement{RequirementStreak, 3},
		Reward:      reward.Bundle{Coins: 30},
		Rarity:      RarityCommon,
	},
	{
		Key: "streak_7", Name: "Week Warrior", Description: "Practice 7 days in a row",
		Requirement: Requirement{RequirementStreak, 7},
		Reward:      reward.Bundle{Coins: 70, Gems: 2, Items: []reward.ItemRef{reward.Consumable("streak_freeze", 1)}},
		Rarity:      RarityRare,
	},
	{
		Key: "streak_30", Name: "Unstoppable", Description: "Practice 30 days in a row",
		Requirement: Requirement{RequirementStreak, 30},
		Reward:      reward.Bundle{Coins: 300, Gems: 10, Items: []reward.ItemRef{reward.Avatar("golden_owl")}},
		Rarity:      RarityEpic,
	},
	{
		Key: "level_5", Name: "Rising Star", Description: "Reach level 5",
		Requirement: Requirement{RequirementLevel, 5},
		Reward:      reward.Bundle{Coins: 50},
		Rarity:      RarityCommon,
	},
	{
		Key: "level_10", Name: "Math Wizard", Description: "Reach level 10",
		Requirement: Requirement{RequirementLevel, 10},
		Reward:      reward.Bundle{Coins: 100, Gems: 5, Items: []reward.ItemRef{reward.Avatar("wizard")}},
		Rarity:      RarityRare,
	},
	{
		Key: "hot_hand", Name: "Hot Hand", Description: "Get 5 answers in a row right",
		Requirement: Requirement{RequirementCorrectStreak, 5},
		Reward:      reward.Bundle{Coins: 25, XP: 10},
		Rarity:      RarityCommon,
	},
	{
		Key: "perfect_ten", Name: "Perfect Ten", Description: "Get your last 10 answers right",
		Requirement: Requirement{RequirementCorrectStreak, 10},
		Reward:      reward.Bundle{Coins: 50, XP: 25, Items: []reward.ItemRef{reward.Consumable("hint_token", 3)}},
		Rarity:      RarityRare,
	},
	{
		Key: "combo_10", Name: "Combo Master", Description: "Reach a 10x combo in one session",
		Requirement: Requirement{RequirementCombo, 10},
		Reward:      reward.Bundle{Coins: 100, XP: 50},
		Rarity:      RarityRare,
	},
	{
		Key: "combo_50", Name: "Legendary Combo", Description: "Reach a 50x combo in one session",
		Requirement: Requirement{RequirementCombo, 50},
		Reward:      reward.Bundle{Coins: 500, Gems: 25, Items: []reward.ItemRef{reward.Pet("phoenix")}},
		Rarity:      RarityLegendary,
	},
})
