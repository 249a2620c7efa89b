package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

func def(key string, t RequirementType, v int) Definition {
	return Definition{Key: key, Requirement: Requirement{Type: t, Value: v}, Rarity: RarityCommon}
}

func TestDefinition_IsSatisfied(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		snap Snapshot
		want bool
	}{
		{"problems met", def("p", RequirementProblemsSolved, 10), Snapshot{TotalProblems: 10}, true},
		{"problems short", def("p", RequirementProblemsSolved, 10), Snapshot{TotalProblems: 9}, false},
		{"streak met", def("s", RequirementStreak, 3), Snapshot{CurrentStreak: 4}, true},
		{"level short", def("l", RequirementLevel, 5), Snapshot{CurrentLevel: 4}, false},
		{"combo met", def("c", RequirementCombo, 10), Snapshot{ComboCount: 10}, true},
		{"correct streak met", def("cs", RequirementCorrectStreak, 3), Snapshot{RecentCorrect: []bool{true, true, true, false}}, true},
		{"correct streak broken", def("cs", RequirementCorrectStreak, 3), Snapshot{RecentCorrect: []bool{true, false, true}}, false},
		{"correct streak too few attempts", def("cs", RequirementCorrectStreak, 3), Snapshot{RecentCorrect: []bool{true, true}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.IsSatisfied(tt.snap))
		})
	}
}

func TestCatalog_Candidates(t *testing.T) {
	c, err := NewCatalog([]Definition{
		def("first", RequirementProblemsSolved, 1),
		def("ten", RequirementProblemsSolved, 10),
		def("combo_5", RequirementCombo, 5),
		def("streak_2", RequirementStreak, 2),
	})
	require.NoError(t, err)

	snap := Snapshot{TotalProblems: 12, ComboCount: 6, CurrentStreak: 1}

	got := c.Candidates(map[string]bool{"first": true}, snap, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "ten", got[0].Key)
	assert.Equal(t, "combo_5", got[1].Key)

	got = c.Candidates(nil, snap, ExceptTypes(RequirementCombo))
	assert.Len(t, got, 2)

	got = c.Candidates(nil, snap, OnlyTypes(RequirementCombo))
	require.Len(t, got, 1)
	assert.Equal(t, "combo_5", got[0].Key)
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog([]Definition{def("a", RequirementLevel, 1), def("a", RequirementLevel, 2)})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = NewCatalog([]Definition{def("a", "unknown", 1)})
	assert.True(t, shared.IsValidation(err))

	_, err = NewCatalog([]Definition{def("a", RequirementLevel, 0)})
	assert.True(t, shared.IsValidation(err))

	bad := def("a", RequirementLevel, 1)
	bad.Reward = reward.Bundle{Items: []reward.ItemRef{{Kind: reward.ItemPet, ID: "x", Quantity: 3}}}
	_, err = NewCatalog([]Definition{bad})
	assert.True(t, shared.IsValidation(err))
}

func TestDefaultCatalog(t *testing.T) {
	d, err := DefaultCatalog.Get("combo_10")
	require.NoError(t, err)
	assert.Equal(t, RequirementCombo, d.Requirement.Type)
	assert.Equal(t, 10, d.Requirement.Value)

	_, err = DefaultCatalog.Get("nope")
	assert.True(t, shared.IsNotFound(err))

	assert.Equal(t, 10, DefaultCatalog.AttemptWindow(nil))
}

func TestCatalog_AttemptWindowSkipsUnlocked(t *testing.T) {
	assert.Equal(t, 5, DefaultCatalog.AttemptWindow(map[string]bool{"perfect_ten": true}))
	assert.Equal(t, 10, DefaultCatalog.AttemptWindow(map[string]bool{"hot_hand": true}))
	assert.Zero(t, DefaultCatalog.AttemptWindow(map[string]bool{"hot_hand": true, "perfect_ten": true}))
}

func TestUnlockedSet(t *testing.T) {
	set := UnlockedSet([]StudentAchievement{{AchievementKey: "a"}, {AchievementKey: "b"}})
	assert.True(t, set["a"])
	assert.False(t, set["c"])
}
