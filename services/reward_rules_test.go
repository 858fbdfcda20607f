package services

import (
	"testing"

	"wellness-progression-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelta_DifficultyScaling(t *testing.T) {
	engine := NewRewardRuleEngine(0)

	tests := []struct {
		name       string
		action     models.ActionType
		difficulty models.Difficulty
		wantXP     int64
		wantCoins  int64
	}{
		{"task medium", models.ActionTaskCompletion, models.DifficultyMedium, 20, 5},
		{"task default difficulty", models.ActionTaskCompletion, "", 20, 5},
		{"task easy", models.ActionTaskCompletion, models.DifficultyEasy, 15, 4},   // 3.75 rounds half up
		{"task hard", models.ActionTaskCompletion, models.DifficultyHard, 30, 8},   // 7.5 rounds half up
		{"task expert", models.ActionTaskCompletion, models.DifficultyExpert, 40, 10},
		{"quest hard", models.ActionQuestCompletion, models.DifficultyHard, 150, 38}, // 37.5 rounds half up
		{"streak bonus ignores difficulty", models.ActionStreakBonus, models.DifficultyExpert, 15, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := engine.ComputeDelta(tt.action, RewardContext{Difficulty: tt.difficulty})
			require.NoError(t, err)
			assert.Equal(t, tt.wantXP, delta.XP)
			assert.Equal(t, tt.wantCoins, delta.Coins)
		})
	}
}

func TestComputeDelta_InvalidInputs(t *testing.T) {
	engine := NewRewardRuleEngine(0)

	_, err := engine.ComputeDelta("nonsense", RewardContext{})
	assert.ErrorIs(t, err, ErrInvalidActionType)

	_, err = engine.ComputeDelta(models.ActionTaskCompletion, RewardContext{Difficulty: "nightmare"})
	assert.ErrorIs(t, err, ErrInvalidDifficulty)

	// A bogus difficulty is rejected even on actions that ignore it.
	_, err = engine.ComputeDelta(models.ActionStreakBonus, RewardContext{Difficulty: "nightmare"})
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
}

func TestComputeDelta_ManualAwardClamp(t *testing.T) {
	engine := NewRewardRuleEngine(1000)

	delta, err := engine.ComputeDelta(models.ActionManualAward, RewardContext{ManualAmount: 50000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), delta.XP)
	assert.Equal(t, int64(0), delta.Coins)

	delta, err = engine.ComputeDelta(models.ActionManualAward, RewardContext{ManualAmount: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), delta.XP)

	delta, err = engine.ComputeDelta(models.ActionManualAward, RewardContext{ManualAmount: 250})
	require.NoError(t, err)
	assert.Equal(t, int64(250), delta.XP)
}

func TestComputeDelta_AchievementUnlockUsesContextAmounts(t *testing.T) {
	engine := NewRewardRuleEngine(0)

	delta, err := engine.ComputeDelta(models.ActionAchievementUnlock, RewardContext{
		AchievementXP:    50,
		AchievementCoins: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RewardDelta{XP: 50, Coins: 20}, delta)

	// Never negative, even with a broken catalog entry.
	delta, err = engine.ComputeDelta(models.ActionAchievementUnlock, RewardContext{
		AchievementXP:    -10,
		AchievementCoins: -5,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RewardDelta{}, delta)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, int64(8), roundHalfUp(7.5))
	assert.Equal(t, int64(7), roundHalfUp(7.49))
	assert.Equal(t, int64(4), roundHalfUp(3.75))
	assert.Equal(t, int64(20), roundHalfUp(20.0))
}
