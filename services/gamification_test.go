package services

import (
	"context"
	"testing"

	"wellness-progression-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGamificationFixture(t *testing.T) (*MemoryProgressionStore, *GamificationService) {
	t.Helper()
	store := NewMemoryProgressionStore()
	ledger := NewProgressionLedger(store, &captureSink{})
	evaluator := NewAchievementEvaluator(ledger, models.AchievementCatalog())
	svc := NewGamificationService(NewRewardRuleEngine(1000), ledger, evaluator, store)
	return store, svc
}

func TestApplyAction_SeventhDayUnlocksWeekStreak(t *testing.T) {
	ctx := context.Background()
	store, svc := newGamificationFixture(t)

	last := day("2024-01-06")
	seedProgression(t, store, models.UserProgression{
		UserID: "u1", Level: 3, CurrentXP: 120, TotalXP: 500,
		StreakDays: 6, LastActivityDate: &last,
		UnlockedAchievementIDs: []string{"first-steps"},
	})

	res, err := svc.ApplyAction(ctx, ActionRequest{
		UserID:       "u1",
		Action:       models.ActionTaskCompletion,
		ActivityDate: day("2024-01-07"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), res.XPAwarded)
	assert.Equal(t, 7, res.NewStreak)
	assert.Contains(t, res.UnlockedAchievementIDs, "streak-7")

	// Task XP plus the streak-7 achievement reward.
	assert.Equal(t, int64(570), res.State.TotalXP)
	assert.Equal(t, int64(25), res.State.Coins)
	assert.True(t, res.State.HasAchievement("streak-7"))
	assert.True(t, res.State.HasAchievement("first-steps"))
}

func TestApplyAction_RejectsInternalActionType(t *testing.T) {
	_, svc := newGamificationFixture(t)

	_, err := svc.ApplyAction(context.Background(), ActionRequest{
		UserID: "u1",
		Action: models.ActionAchievementUnlock,
	})
	assert.ErrorIs(t, err, ErrInvalidActionType)
}

func TestGetProgression_UnknownUserGetsZeroStateWithoutRecord(t *testing.T) {
	ctx := context.Background()
	store, svc := newGamificationFixture(t)

	prog, err := svc.GetProgression(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", prog.UserID)
	assert.Equal(t, 1, prog.Level)
	assert.Equal(t, int64(0), prog.TotalXP)
	assert.Equal(t, 0, prog.StreakDays)
	assert.Nil(t, prog.LastActivityDate)

	// The read is side-effect free, repeatedly.
	_, err = svc.GetProgression(ctx, "ghost")
	require.NoError(t, err)
	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboard_OrderingAndMirrorNames(t *testing.T) {
	ctx := context.Background()
	store, svc := newGamificationFixture(t)

	seedProgression(t, store, models.UserProgression{UserID: "b", Level: 2, TotalXP: 300})
	seedProgression(t, store, models.UserProgression{UserID: "a", Level: 2, TotalXP: 300})
	seedProgression(t, store, models.UserProgression{UserID: "c", Level: 5, TotalXP: 900})
	store.PutMirror(models.UserMirror{ExternalUserID: "c", Username: "carol"})

	entries, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "c", entries[0].UserID)
	assert.Equal(t, "carol", entries[0].Username)
	assert.Equal(t, 1, entries[0].Rank)

	// Equal XP breaks ties by user id.
	assert.Equal(t, "a", entries[1].UserID)
	assert.Equal(t, "b", entries[2].UserID)
	assert.Empty(t, entries[1].Username)
}

func TestLeaderboard_LimitRespected(t *testing.T) {
	ctx := context.Background()
	store, svc := newGamificationFixture(t)
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		seedProgression(t, store, models.UserProgression{UserID: id, Level: 1, TotalXP: int64(len(id))})
	}

	entries, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
