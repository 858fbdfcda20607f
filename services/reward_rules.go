package services

import (
	"fmt"
	"math"

	"wellness-progression-service/models"
)

// DefaultManualAwardMaxXP caps a single manual grant. Admin requests above
// the cap are clamped, not rejected.
const DefaultManualAwardMaxXP = 1000

// RewardContext carries the per-action inputs to reward computation.
// Metadata is audit-only: it is logged with the activity record and never
// feeds the computed amounts, so clients cannot inflate their own rewards.
type RewardContext struct {
	Difficulty   models.Difficulty
	ManualAmount int64

	// Set by the achievement evaluator for achievement_unlock; never
	// populated from client input.
	AchievementXP    int64
	AchievementCoins int64

	Metadata map[string]string
}

// RewardRuleEngine maps (actionType, context) to a RewardDelta. Pure: no
// side effects, no storage access.
type RewardRuleEngine struct {
	rules          map[models.ActionType]models.RewardRule
	multipliers    map[models.Difficulty]float64
	manualAwardMax int64
}

func NewRewardRuleEngine(manualAwardMax int64) *RewardRuleEngine {
	if manualAwardMax <= 0 {
		manualAwardMax = DefaultManualAwardMaxXP
	}
	return &RewardRuleEngine{
		rules:          models.DefaultRewardRules,
		multipliers:    models.DefaultDifficultyMultipliers,
		manualAwardMax: manualAwardMax,
	}
}

// ComputeDelta returns the reward for one action occurrence.
func (e *RewardRuleEngine) ComputeDelta(action models.ActionType, rctx RewardContext) (models.RewardDelta, error) {
	rule, ok := e.rules[action]
	if !ok {
		return models.RewardDelta{}, fmt.Errorf("%w: %q", ErrInvalidActionType, action)
	}

	// A supplied difficulty must be valid even for actions that ignore it.
	multiplier := 1.0
	if rctx.Difficulty != "" {
		m, ok := e.multipliers[rctx.Difficulty]
		if !ok {
			return models.RewardDelta{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, rctx.Difficulty)
		}
		multiplier = m
	}

	switch action {
	case models.ActionManualAward:
		amount := rctx.ManualAmount
		if amount < 1 {
			amount = 1
		}
		if amount > e.manualAwardMax {
			amount = e.manualAwardMax
		}
		return models.RewardDelta{XP: amount}, nil

	case models.ActionAchievementUnlock:
		xp, coins := rctx.AchievementXP, rctx.AchievementCoins
		if xp < 0 {
			xp = 0
		}
		if coins < 0 {
			coins = 0
		}
		return models.RewardDelta{XP: xp, Coins: coins}, nil
	}

	if !action.DifficultyScaled() {
		multiplier = 1.0
	}
	return models.RewardDelta{
		XP:    roundHalfUp(float64(rule.BaseXP) * multiplier),
		Coins: roundHalfUp(float64(rule.BaseCoins) * multiplier),
	}, nil
}

// ManualAwardMax exposes the configured cap (for API responses).
func (e *RewardRuleEngine) ManualAwardMax() int64 { return e.manualAwardMax }

// round half up, for determinism across platforms
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
