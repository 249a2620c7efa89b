package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

func TestPolicy_ForAttempt(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name  string
		in    AttemptInput
		want  int64
		coins int64
	}{
		{
			name: "incorrect earns nothing",
			in:   AttemptInput{IsCorrect: false, PointValue: 20, AttemptNumber: 1},
		},
		{
			name:  "base only",
			in:    AttemptInput{IsCorrect: true, PointValue: 20, AttemptNumber: 2, TimeSpent: 90 * time.Second, EstimatedTime: 60 * time.Second},
			want:  20,
			coins: 5,
		},
		{
			name:  "first try and speed",
			in:    AttemptInput{IsCorrect: true, PointValue: 20, AttemptNumber: 1, TimeSpent: 10 * time.Second, EstimatedTime: 60 * time.Second},
			want:  30,
			coins: 5,
		},
		{
			name:  "streak multiplier floors",
			in:    AttemptInput{IsCorrect: true, PointValue: 11, AttemptNumber: 1, TimeSpent: 10 * time.Second, EstimatedTime: 60 * time.Second, CurrentStreak: 5},
			want:  31, // floor(21 * 1.5)
			coins: 5,
		},
		{
			name:  "streak of exactly threshold has no multiplier",
			in:    AttemptInput{IsCorrect: true, PointValue: 20, AttemptNumber: 3, TimeSpent: time.Minute, EstimatedTime: time.Minute, CurrentStreak: 2},
			want:  20,
			coins: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ForAttempt(tt.in)
			assert.Equal(t, tt.want, got.XP)
			assert.Equal(t, tt.coins, got.Coins)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.StreakMultiplier = 0.5
	assert.ErrorIs(t, bad.Validate(), shared.ErrValueOutOfRange)
}

func TestBundle_AddAndValidate(t *testing.T) {
	a := Bundle{Coins: 10, XP: 20, Items: []ItemRef{Avatar("wizard")}}
	b := Bundle{Gems: 3, Items: []ItemRef{Consumable("hint_token", 2)}}

	sum := a.Add(b)
	assert.Equal(t, Bundle{Coins: 10, XP: 20, Gems: 3, Items: []ItemRef{Avatar("wizard"), Consumable("hint_token", 2)}}, sum)
	assert.NoError(t, sum.Validate())
	assert.True(t, Bundle{}.IsZero())
	assert.False(t, sum.IsZero())

	assert.True(t, shared.IsValidation(Bundle{Coins: -1}.Validate()))
	assert.True(t, shared.IsValidation(Bundle{Items: []ItemRef{{Kind: ItemPet, ID: "cat", Quantity: 2}}}.Validate()))
	assert.True(t, shared.IsValidation(Bundle{Items: []ItemRef{{Kind: "hat", ID: "x", Quantity: 1}}}.Validate()))
}
