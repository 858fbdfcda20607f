package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAchievementCatalog_WellFormed(t *testing.T) {
	catalog := AchievementCatalog()
	require.NotEmpty(t, catalog)

	seen := make(map[string]bool)
	for _, def := range catalog {
		assert.NotEmpty(t, def.ID)
		assert.NotEmpty(t, def.Name)
		assert.False(t, seen[def.ID], "duplicate id %s", def.ID)
		seen[def.ID] = true
		assert.NotNil(t, def.Condition, "catalog entry %s must have a condition", def.ID)
		assert.GreaterOrEqual(t, def.RewardXP, int64(0))
		assert.GreaterOrEqual(t, def.RewardCoins, int64(0))
	}

	assert.True(t, sort.SliceIsSorted(catalog, func(i, j int) bool {
		return catalog[i].ID < catalog[j].ID
	}))
}

func TestNormalizeCatalog(t *testing.T) {
	defs := []AchievementDefinition{
		{ID: "Zeta Badge"},
		{Name: "Alpha Badge"}, // empty id falls back to the name
		{ID: "mid-tier"},
	}

	out := NormalizeCatalog(defs)
	assert.Equal(t, []string{"alpha-badge", "mid-tier", "zeta-badge"},
		[]string{out[0].ID, out[1].ID, out[2].ID})

	// The input slice is left alone.
	assert.Equal(t, "Zeta Badge", defs[0].ID)
}

func TestHasAchievement(t *testing.T) {
	p := UserProgression{UnlockedAchievementIDs: []string{"first-steps", "streak-7"}}
	assert.True(t, p.HasAchievement("streak-7"))
	assert.False(t, p.HasAchievement("streak-30"))

	var empty UserProgression
	assert.False(t, empty.HasAchievement("first-steps"))
}
