// handlers/achievement_routes.go
package handlers

import (
	"wellness-progression-service/middleware"
	"wellness-progression-service/services"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func SetupAchievementRoutes(app *fiber.App, svc *services.GamificationService) {
	titleCaser := cases.Title(language.English)

	// Full catalog — no user context needed, the Gateway token suffices.
	app.Get("/achievements", func(c *fiber.Ctx) error {
		var response []fiber.Map
		for _, def := range svc.Achievements.Catalog() {
			response = append(response, fiber.Map{
				"id":           def.ID,
				"name":         def.Name,
				"description":  def.Description,
				"rarity":       def.Rarity,
				"rarity_label": titleCaser.String(def.Rarity),
				"reward_xp":    def.RewardXP,
				"reward_coins": def.RewardCoins,
				"repeatable":   def.Repeatable,
			})
		}
		return c.JSON(fiber.Map{"achievements": response})
	})

	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Get("/progression/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		unlocks, err := svc.Unlocks(c.Context(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch achievements",
				"cause": err.Error(),
			})
		}

		byID := make(map[string]int)
		for i, def := range svc.Achievements.Catalog() {
			byID[def.ID] = i
		}
		catalog := svc.Achievements.Catalog()

		var response []fiber.Map
		for _, ua := range unlocks {
			entry := fiber.Map{
				"achievement_id": ua.AchievementID,
				"reward_xp":      ua.RewardXP,
				"reward_coins":   ua.RewardCoins,
				"granted_at":     ua.GrantedAt,
			}
			if i, ok := byID[ua.AchievementID]; ok {
				entry["name"] = catalog[i].Name
				entry["rarity"] = catalog[i].Rarity
			}
			response = append(response, entry)
		}
		return c.JSON(fiber.Map{"achievements": response})
	})
}
