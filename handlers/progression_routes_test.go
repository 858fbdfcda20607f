package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"wellness-progression-service/messaging"
	"wellness-progression-service/models"
	"wellness-progression-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *services.MemoryProgressionStore) {
	t.Helper()
	store := services.NewMemoryProgressionStore()
	ledger := services.NewProgressionLedger(store, messaging.LogSink{})
	evaluator := services.NewAchievementEvaluator(ledger, models.AchievementCatalog())
	svc := services.NewGamificationService(services.NewRewardRuleEngine(1000), ledger, evaluator, store)

	app := fiber.New()
	SetupProgressionRoutes(app, svc, services.NewMemoryIdempotencyGuard())
	SetupAchievementRoutes(app, svc)
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-ID": id}
}

func TestPostAction_RequiresUserContext(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/s/progression/actions",
		fiber.Map{"action_type": "task_completion"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["error"], "X-User-ID")
}

func TestPostAction_AppliesTaskCompletion(t *testing.T) {
	app, store := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/s/progression/actions", fiber.Map{
		"action_type":   "task_completion",
		"difficulty":    "hard",
		"activity_date": "2024-03-01",
		"reason":        "workout logged",
	}, asUser("u1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, float64(30), body["xp_awarded"]) // 20 * 1.5
	assert.Equal(t, float64(1), body["new_streak"])
	assert.Contains(t, body["unlocked_achievement_ids"], "first-steps")

	// Task XP plus the first-steps achievement reward.
	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), stored.TotalXP)
}

func TestPostAction_RejectsUnsupportedTypes(t *testing.T) {
	app, _ := newTestApp(t)

	for _, action := range []string{"manual_award", "achievement_unlock", "made_up"} {
		resp, body := doJSON(t, app, "POST", "/s/progression/actions",
			fiber.Map{"action_type": action}, asUser("u1"))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, action)
		assert.Equal(t, "unsupported action_type", body["error"])
	}
}

func TestPostAction_RejectsBadDate(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/s/progression/actions", fiber.Map{
		"action_type":   "task_completion",
		"activity_date": "03/01/2024",
	}, asUser("u1"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPostAction_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	app, store := newTestApp(t)

	payload := fiber.Map{
		"action_type":     "task_completion",
		"idempotency_key": "task-42-done",
	}

	resp, _ := doJSON(t, app, "POST", "/s/progression/actions", payload, asUser("u1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/s/progression/actions", payload, asUser("u1"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate action occurrence", body["error"])

	// Rewarded exactly once: task XP plus the first-steps reward.
	stored, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), stored.TotalXP)

	// Another user may reuse the same key.
	resp, _ = doJSON(t, app, "POST", "/s/progression/actions", payload, asUser("u2"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetProgression_ZeroStateForNewUser(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/s/progression", nil, asUser("fresh"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "fresh", body["user_id"])
	assert.Equal(t, float64(1), body["level"])
	assert.Equal(t, float64(0), body["total_xp"])
	assert.Equal(t, float64(0), body["streak_days"])
	assert.Equal(t, float64(100), body["xp_to_next_level"])
	assert.Nil(t, body["last_activity_date"])
}

func TestAdminGrant_RequiresAdminRole(t *testing.T) {
	app, _ := newTestApp(t)

	payload := fiber.Map{"user_id": "u1", "amount": 500}

	resp, _ := doJSON(t, app, "POST", "/s/admin/xp/grant", payload, asUser("mod"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/s/admin/xp/grant", payload, map[string]string{
		"X-User-ID":    "mod",
		"X-User-Roles": "admin,support",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(500), body["xp_awarded"])
}

func TestAdminGrant_ClampsOversizedAmounts(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/s/admin/xp/grant",
		fiber.Map{"user_id": "u1", "amount": 999999},
		map[string]string{"X-User-ID": "mod", "X-User-Roles": "admin"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1000), body["xp_awarded"])
}

func TestGetAchievementCatalog(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/achievements", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	list, ok := body["achievements"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, list)

	first, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, first["id"])
	assert.NotEmpty(t, first["rarity_label"])
}

func TestGetUserAchievements_JoinsCatalogNames(t *testing.T) {
	app, _ := newTestApp(t)

	// Enough XP to unlock first-steps on the way in.
	resp, _ := doJSON(t, app, "POST", "/s/progression/actions",
		fiber.Map{"action_type": "task_completion"}, asUser("u1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, "GET", "/s/progression/achievements", nil, asUser("u1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	list, ok := body["achievements"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)

	entry := list[0].(map[string]any)
	assert.Equal(t, "first-steps", entry["achievement_id"])
	assert.Equal(t, "First Steps", entry["name"])
}
