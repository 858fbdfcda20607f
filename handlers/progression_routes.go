// handlers/progression_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"wellness-progression-service/middleware"
	"wellness-progression-service/models"
	"wellness-progression-service/services"

	"github.com/gofiber/fiber/v2"
)

// clientActionTypes are the actions route callers may apply directly.
// manual_award goes through the admin endpoint; achievement_unlock is
// evaluator-internal.
var clientActionTypes = map[models.ActionType]bool{
	models.ActionTaskCompletion:  true,
	models.ActionQuestCompletion: true,
	models.ActionStreakBonus:     true,
}

// idempotencyTTL bounds how long a replayed key is still rejected.
const idempotencyTTL = 48 * time.Hour

func SetupProgressionRoutes(app *fiber.App, svc *services.GamificationService, guard services.IdempotencyGuard) {
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Post("/progression/actions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			ActionType     string `json:"action_type"`
			Difficulty     string `json:"difficulty"`
			ActivityDate   string `json:"activity_date"` // YYYY-MM-DD, defaults to today
			Reason         string `json:"reason"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		action := models.ActionType(req.ActionType)
		if !clientActionTypes[action] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unsupported action_type",
			})
		}

		activityDate := time.Now()
		if req.ActivityDate != "" {
			parsed, err := time.Parse("2006-01-02", req.ActivityDate)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "activity_date must be YYYY-MM-DD",
				})
			}
			activityDate = parsed
		}

		if req.IdempotencyKey != "" {
			first, err := guard.Register(c.Context(), userID, req.IdempotencyKey, idempotencyTTL)
			if err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "idempotency check unavailable",
					"cause": err.Error(),
				})
			}
			if !first {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "duplicate action occurrence",
				})
			}
		}

		result, err := svc.ApplyAction(c.Context(), services.ActionRequest{
			UserID:         userID,
			Action:         action,
			Difficulty:     models.Difficulty(req.Difficulty),
			ActivityDate:   activityDate,
			Reason:         req.Reason,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return progressionError(c, err)
		}

		return c.JSON(fiber.Map{
			"xp_awarded":               result.XPAwarded,
			"coins_awarded":            result.CoinsAwarded,
			"new_level":                result.NewLevel,
			"leveled_up":               result.LeveledUp,
			"new_streak":               result.NewStreak,
			"unlocked_achievement_ids": result.UnlockedAchievementIDs,
			"total_xp":                 result.State.TotalXP,
			"coins":                    result.State.Coins,
		})
	})

	securedGroup.Get("/progression", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := svc.GetProgression(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch progression",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"user_id":                  prog.UserID,
			"level":                    prog.Level,
			"current_xp":               prog.CurrentXP,
			"total_xp":                 prog.TotalXP,
			"coins":                    prog.Coins,
			"streak_days":              prog.StreakDays,
			"last_activity_date":       formatDate(prog.LastActivityDate),
			"xp_to_next_level":         services.XPRequiredForLevel(prog.Level) - prog.CurrentXP,
			"unlocked_achievement_ids": prog.UnlockedAchievementIDs,
			"last_level_up_at":         prog.LastLevelUpAt,
		})
	})

	securedGroup.Get("/progression/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))

		records, err := svc.RecentActivity(c.Context(), userID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch activity",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"activity": records})
	})

	app.Get("/progression/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "10"))

		entries, err := svc.Leaderboard(c.Context(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.UserID == "" || req.Amount < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id and a positive amount are required",
			})
		}

		// Routed through the rule engine so the amount is clamped
		// server-side; the request value is never trusted as-is.
		result, err := svc.ApplyAction(c.Context(), services.ActionRequest{
			UserID:       req.UserID,
			Action:       models.ActionManualAward,
			ManualAmount: req.Amount,
			Reason:       req.Reason,
		})
		if err != nil {
			return progressionError(c, err)
		}

		return c.JSON(fiber.Map{
			"message":    "XP granted",
			"user_id":    req.UserID,
			"xp_awarded": result.XPAwarded,
			"new_level":  result.NewLevel,
		})
	})
}

// progressionError maps service errors to HTTP statuses.
func progressionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidActionType), errors.Is(err, services.ErrInvalidDifficulty):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrConcurrentModification):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "progression busy, retry with the same idempotency key",
			"retryable": true,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reward application failed",
			"cause": err.Error(),
		})
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
