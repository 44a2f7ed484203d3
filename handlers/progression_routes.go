// handlers/progression_routes.go
package handlers

import (
	"errors"
	"log"

	"collective-project-system/middleware"
	"collective-project-system/models"
	"collective-project-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func SetupProgressionRoutes(app *fiber.App, db *gorm.DB) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching user"})
		}

		level := services.LevelFromExperience(user.Experience)

		var contributions int64
		db.Model(&models.Contribution{}).Where("user_id = ?", userID).Count(&contributions)
		var featured int64
		db.Model(&models.Contribution{}).Where("user_id = ? AND is_featured = ?", userID, true).Count(&featured)

		return c.JSON(fiber.Map{
			"experience":             user.Experience,
			"coins":                  user.Coins,
			"level":                  level,
			"progress_to_next_level": services.ProgressToNextLevel(user.Experience, level),
			"next_level_experience":  services.ExperienceForLevel(level + 1),
			"contributions_count":    contributions,
			"featured_count":         featured,
		})
	})

	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var unlocked []models.UserAchievement
		if err := db.Where("user_id = ?", userID).
			Preload("Achievement").
			Order("unlocked_at DESC").
			Find(&unlocked).Error; err != nil {
			log.Printf("DB Error fetching achievements for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
		}

		return c.JSON(fiber.Map{"achievements": unlocked})
	})

	secured.Get("/user/notifications", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var notifications []models.Notification
		if err := db.Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(50).
			Find(&notifications).Error; err != nil {
			log.Printf("DB Error fetching notifications for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notifications"})
		}

		return c.JSON(fiber.Map{"notifications": notifications})
	})

	secured.Patch("/user/notifications/read", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		result := db.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Update("is_read", true)
		if result.Error != nil {
			log.Printf("Bulk mark read failed for %s: %v", userID, result.Error)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
		}

		return c.JSON(fiber.Map{"message": "OK", "marked_count": result.RowsAffected})
	})

	secured.Post("/user/devices", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			DeviceToken string `json:"device_token"`
			Platform    string `json:"platform"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.DeviceToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "device_token is required"})
		}

		device := models.UserDevice{
			ID:          uuid.NewString(),
			UserID:      userID,
			DeviceToken: req.DeviceToken,
			Platform:    req.Platform,
			IsActive:    true,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_token"}},
			DoUpdates: clause.AssignmentColumns([]string{"platform", "is_active"}),
		}).Create(&device).Error
		if err != nil {
			log.Printf("DB Error registering device for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register device"})
		}

		return c.Status(fiber.StatusCreated).JSON(device)
	})
}
