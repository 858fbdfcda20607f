package models

import (
	"sort"

	"github.com/gosimple/slug"
)

// AchievementDefinition: static catalog entry. Condition is a predicate over
// the user's progression snapshot; a nil Condition is treated as malformed
// and skipped by the evaluator.
type AchievementDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"` // common, rare, epic, legendary

	RewardXP    int64 `json:"reward_xp"`
	RewardCoins int64 `json:"reward_coins"`

	// Repeatable achievements can fire again on later events. The common
	// case is false: unlock at most once per user.
	Repeatable bool `json:"repeatable"`

	Condition func(p UserProgression) bool `json:"-"`
}

// NormalizeCatalog slugifies ids (falling back to the name when the id is
// empty) and sorts ascending by id, so simultaneous unlocks resolve in a
// stable order.
func NormalizeCatalog(defs []AchievementDefinition) []AchievementDefinition {
	out := make([]AchievementDefinition, len(defs))
	copy(out, defs)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = out[i].Name
		}
		out[i].ID = slug.Make(out[i].ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AchievementCatalog returns the default wellness achievement set.
func AchievementCatalog() []AchievementDefinition {
	return NormalizeCatalog([]AchievementDefinition{
		{
			ID: "first-steps", Name: "First Steps", Rarity: "common",
			Description: "Logged your first activity",
			RewardXP:    10, RewardCoins: 5,
			Condition: func(p UserProgression) bool { return p.TotalXP >= 10 },
		},
		{
			ID: "streak-7", Name: "Week One Wonder", Rarity: "rare",
			Description: "Kept a 7-day activity streak",
			RewardXP:    50, RewardCoins: 20,
			Condition: func(p UserProgression) bool { return p.StreakDays >= 7 },
		},
		{
			ID: "streak-30", Name: "Habit Builder", Rarity: "epic",
			Description: "Kept a 30-day activity streak",
			RewardXP:    300, RewardCoins: 100,
			Condition: func(p UserProgression) bool { return p.StreakDays >= 30 },
		},
		{
			ID: "streak-100", Name: "Unstoppable", Rarity: "legendary",
			Description: "Kept a 100-day activity streak",
			RewardXP:    1500, RewardCoins: 500,
			Condition: func(p UserProgression) bool { return p.StreakDays >= 100 },
		},
		{
			ID: "level-5", Name: "Getting Serious", Rarity: "common",
			Description: "Reached level 5",
			RewardXP:    50, RewardCoins: 25,
			Condition: func(p UserProgression) bool { return p.Level >= 5 },
		},
		{
			ID: "level-10", Name: "Double Digits", Rarity: "rare",
			Description: "Reached level 10",
			RewardXP:    150, RewardCoins: 50,
			Condition: func(p UserProgression) bool { return p.Level >= 10 },
		},
		{
			ID: "level-25", Name: "Wellness Veteran", Rarity: "epic",
			Description: "Reached level 25",
			RewardXP:    500, RewardCoins: 200,
			Condition: func(p UserProgression) bool { return p.Level >= 25 },
		},
		{
			ID: "xp-5000", Name: "Point Hoarder", Rarity: "rare",
			Description: "Earned 5,000 lifetime XP",
			RewardXP:    100, RewardCoins: 50,
			Condition: func(p UserProgression) bool { return p.TotalXP >= 5000 },
		},
		{
			ID: "xp-25000", Name: "XP Tycoon", Rarity: "legendary",
			Description: "Earned 25,000 lifetime XP",
			RewardXP:    1000, RewardCoins: 400,
			Condition: func(p UserProgression) bool { return p.TotalXP >= 25000 },
		},
		{
			ID: "coin-collector", Name: "Coin Collector", Rarity: "common",
			Description: "Held 500 coins at once",
			RewardXP:    25, RewardCoins: 0,
			Condition: func(p UserProgression) bool { return p.Coins >= 500 },
		},
	})
}
