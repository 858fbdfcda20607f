package services

import (
	"context"
	"sort"

	"wellness-progression-service/models"

	"github.com/rs/zerolog/log"
)

// AchievementEvaluator reacts to progression changes and unlocks catalog
// entries whose conditions hold. Unlocks fire in ascending id order so
// simultaneous qualification resolves reproducibly.
type AchievementEvaluator struct {
	ledger  *ProgressionLedger
	catalog []models.AchievementDefinition
}

func NewAchievementEvaluator(ledger *ProgressionLedger, catalog []models.AchievementDefinition) *AchievementEvaluator {
	sorted := make([]models.AchievementDefinition, len(catalog))
	copy(sorted, catalog)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &AchievementEvaluator{ledger: ledger, catalog: sorted}
}

// Catalog returns the evaluator's definitions in evaluation order.
func (e *AchievementEvaluator) Catalog() []models.AchievementDefinition {
	return e.catalog
}

// Evaluate runs the catalog against the given post-mutation state, granting
// every satisfied achievement. Achievement rewards can themselves satisfy
// further achievements; that chain is resolved with one extra pass, never an
// open-ended loop, and no achievement fires twice for the same trigger.
// Returns the ids unlocked (in grant order) and the final state.
func (e *AchievementEvaluator) Evaluate(ctx context.Context, userID string, state models.UserProgression) ([]string, models.UserProgression) {
	var unlockedIDs []string
	granted := make(map[string]bool)
	current := state

	for pass := 0; pass < 2; pass++ {
		progressed := false
		for _, def := range e.catalog {
			if def.Condition == nil {
				log.Warn().Str("achievement_id", def.ID).Msg("achievement has no condition, skipping")
				continue
			}
			if granted[def.ID] {
				continue
			}
			if !def.Repeatable && current.HasAchievement(def.ID) {
				continue
			}
			if !def.Condition(current) {
				continue
			}

			res, err := e.ledger.GrantAchievement(ctx, userID, def)
			if err != nil {
				// Unlock failures never abort the reward flow.
				log.Error().Err(err).Str("user_id", userID).Str("achievement_id", def.ID).
					Msg("achievement grant failed")
				continue
			}
			if res == nil {
				continue // lost a race to another replica
			}

			granted[def.ID] = true
			unlockedIDs = append(unlockedIDs, def.ID)
			current = res.State
			progressed = true
		}
		if !progressed {
			break
		}
	}

	return unlockedIDs, current
}
