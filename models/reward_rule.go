package models

// ActionType enumerates the actions that can earn a reward.
type ActionType string

const (
	ActionTaskCompletion    ActionType = "task_completion"
	ActionQuestCompletion   ActionType = "quest_completion"
	ActionManualAward       ActionType = "manual_award"
	ActionStreakBonus       ActionType = "streak_bonus"
	ActionAchievementUnlock ActionType = "achievement_unlock"
)

// Difficulty labels scale task and quest rewards.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium" // default
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// RewardDelta is the computed outcome of a single action. Both fields are
// always non-negative.
type RewardDelta struct {
	XP    int64 `json:"xp"`
	Coins int64 `json:"coins"`
}

// RewardRule defines base amounts per action type (tunable via config/env later).
type RewardRule struct {
	BaseXP    int64
	BaseCoins int64
}

var DefaultRewardRules = map[ActionType]RewardRule{
	ActionTaskCompletion:  {BaseXP: 20, BaseCoins: 5},
	ActionQuestCompletion: {BaseXP: 100, BaseCoins: 25},
	ActionStreakBonus:     {BaseXP: 15, BaseCoins: 5},
	// manual_award and achievement_unlock carry their amounts in context,
	// so their table entries are zero.
	ActionManualAward:       {},
	ActionAchievementUnlock: {},
}

var DefaultDifficultyMultipliers = map[Difficulty]float64{
	DifficultyEasy:   0.75,
	DifficultyMedium: 1.0,
	DifficultyHard:   1.5,
	DifficultyExpert: 2.0,
}

// DifficultyScaled reports whether rewards for the action depend on difficulty.
func (a ActionType) DifficultyScaled() bool {
	return a == ActionTaskCompletion || a == ActionQuestCompletion
}
