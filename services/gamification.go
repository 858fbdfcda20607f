package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wellness-progression-service/models"
)

// GamificationService composes the rule engine, ledger and achievement
// evaluator behind the API the route handlers call.
type GamificationService struct {
	Rules        *RewardRuleEngine
	Ledger       *ProgressionLedger
	Achievements *AchievementEvaluator
	Store        ProgressionStore
}

func NewGamificationService(rules *RewardRuleEngine, ledger *ProgressionLedger, achievements *AchievementEvaluator, store ProgressionStore) *GamificationService {
	return &GamificationService{
		Rules:        rules,
		Ledger:       ledger,
		Achievements: achievements,
		Store:        store,
	}
}

// ActionRequest describes one action occurrence to reward.
type ActionRequest struct {
	UserID         string
	Action         models.ActionType
	Difficulty     models.Difficulty
	ManualAmount   int64
	ActivityDate   time.Time // zero means "now"
	Reason         string
	IdempotencyKey string
}

// ActionResult is the handler-facing outcome, including any achievements
// the action unlocked (in unlock order).
type ActionResult struct {
	XPAwarded              int64                  `json:"xp_awarded"`
	CoinsAwarded           int64                  `json:"coins_awarded"`
	NewLevel               int                    `json:"new_level"`
	LeveledUp              bool                   `json:"leveled_up"`
	NewStreak              int                    `json:"new_streak"`
	UnlockedAchievementIDs []string               `json:"unlocked_achievement_ids"`
	State                  models.UserProgression `json:"state"`
}

// ApplyAction computes, applies and post-processes one reward.
// achievement_unlock is reserved for the evaluator and rejected here.
func (g *GamificationService) ApplyAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.Action == models.ActionAchievementUnlock {
		return nil, fmt.Errorf("%w: %q is applied internally", ErrInvalidActionType, req.Action)
	}

	delta, err := g.Rules.ComputeDelta(req.Action, RewardContext{
		Difficulty:   req.Difficulty,
		ManualAmount: req.ManualAmount,
	})
	if err != nil {
		return nil, err
	}

	activityDate := req.ActivityDate
	if activityDate.IsZero() {
		activityDate = time.Now()
	}

	res, err := g.Ledger.ApplyReward(ctx, req.UserID, delta, activityDate, req.Action, req.Reason, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	unlocked, finalState := g.Achievements.Evaluate(ctx, req.UserID, res.State)

	return &ActionResult{
		XPAwarded:              res.XPAwarded,
		CoinsAwarded:           res.CoinsAwarded,
		NewLevel:               finalState.Level,
		LeveledUp:              res.LeveledUp || finalState.Level > res.State.Level,
		NewStreak:              finalState.StreakDays,
		UnlockedAchievementIDs: unlocked,
		State:                  finalState,
	}, nil
}

// GetProgression is side-effect free: unknown users get a zero-state default
// (level 1, all counters zero) without a record being created.
func (g *GamificationService) GetProgression(ctx context.Context, userID string) (models.UserProgression, error) {
	prog, err := g.Store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultProgression(userID), nil
	}
	if err != nil {
		return models.UserProgression{}, err
	}
	return *prog, nil
}

// RecentActivity returns the newest audit rows for a user.
func (g *GamificationService) RecentActivity(ctx context.Context, userID string, limit int) ([]models.ActivityRecord, error) {
	return g.Store.RecentActivity(ctx, userID, limit)
}

// Unlocks returns the user's achievement grant log.
func (g *GamificationService) Unlocks(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	return g.Store.ListUnlocks(ctx, userID)
}

// LeaderboardEntry is one row of the top-XP board, decorated with the
// mirrored profile name when available.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	Level      int    `json:"level"`
	TotalXP    int64  `json:"total_xp"`
	StreakDays int    `json:"streak_days"`
}

// Leaderboard returns the top users by lifetime XP, ties broken by user id.
func (g *GamificationService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	progs, err := g.Store.TopByTotalXP(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(progs))
	for _, p := range progs {
		ids = append(ids, p.UserID)
	}
	mirrors, err := g.Store.MirrorsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(progs))
	for i, p := range progs {
		entry := LeaderboardEntry{
			Rank:       i + 1,
			UserID:     p.UserID,
			Level:      p.Level,
			TotalXP:    p.TotalXP,
			StreakDays: p.StreakDays,
		}
		if m, ok := mirrors[p.UserID]; ok {
			entry.Username = m.Username
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
