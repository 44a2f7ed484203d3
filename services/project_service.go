package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"collective-project-system/models"
	"collective-project-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	DB            *gorm.DB
	Rewards       *RewardService
	Notifications *NotificationService
}

func NewProjectService(db *gorm.DB, rewards *RewardService, notifications *NotificationService) *ProjectService {
	return &ProjectService{DB: db, Rewards: rewards, Notifications: notifications}
}

// AdmissionResult is returned to the submitting caller: the accepted
// contribution plus the reward feedback for the client to display.
type AdmissionResult struct {
	Contribution *models.Contribution `json:"contribution"`
	Reward       *RewardResult        `json:"reward"`
}

// TryAdmitContribution runs the full admission as one transaction: status
// check, duplicate check, capacity check + counter increment (a single
// conditional update, so two racing admissions can never both take the last
// slot), contribution insert, and reward. Any failure rolls the whole unit
// back.
func (s *ProjectService) TryAdmitContribution(projectID, userID, challengeID, mediaURL, mediaKind string, durationSeconds *int) (*AdmissionResult, error) {
	var contribution models.Contribution
	var reward *RewardResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		if project.Status != models.ProjectStatusCollecting {
			return ErrProjectNotAccepting
		}

		// Pre-check keeps the common duplicate case cheap; the unique
		// (user_id, challenge_id) index is the authority under races.
		var existing int64
		if err := tx.Model(&models.Contribution{}).
			Where("user_id = ? AND challenge_id = ?", userID, challengeID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateContribution
		}

		// Capacity check and increment in one statement. Zero rows affected
		// means a concurrent admission took the last slot or the sweep
		// moved the project out of collecting.
		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", projectID, models.ProjectStatusCollecting).
			Where("max_participants IS NULL OR participants_count < max_participants").
			Update("participants_count", gorm.Expr("participants_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var fresh models.Project
			if err := tx.First(&fresh, "id = ?", projectID).Error; err != nil {
				return err
			}
			if fresh.Status != models.ProjectStatusCollecting {
				return ErrProjectNotAccepting
			}
			return ErrCapacityExceeded
		}

		contribution = models.Contribution{
			ID:              uuid.NewString(),
			UserID:          userID,
			ChallengeID:     challengeID,
			ProjectID:       projectID,
			MediaURL:        mediaURL,
			MediaKind:       mediaKind,
			DurationSeconds: durationSeconds,
		}
		if err := tx.Create(&contribution).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateContribution
			}
			return fmt.Errorf("failed to record contribution: %w", err)
		}

		// Mirror counter on the originating challenge
		if err := tx.Model(&models.Challenge{}).
			Where("id = ?", challengeID).
			Update("completions_count", gorm.Expr("completions_count + 1")).Error; err != nil {
			log.Printf("⚠️ failed to bump completions for challenge %s: %v", challengeID, err)
		}

		r, err := s.Rewards.ApplyContributionReward(tx, userID, contribution.ID)
		if err != nil {
			return err
		}
		reward = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.DeleteCachePattern("projects:*")
	if s.Notifications != nil {
		go s.Notifications.NotifyNewContribution(projectID, userID)
	}

	return &AdmissionResult{Contribution: &contribution, Reward: reward}, nil
}

// BeginProcessing claims the project for composition. The status CAS makes
// the transition exclusive across processes: when the sweep and a manual
// trigger race, exactly one caller wins and the other sees
// ErrAlreadyProcessed.
func (s *ProjectService) BeginProcessing(projectID string) error {
	res := s.DB.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusCollecting).
		Update("status", models.ProjectStatusProcessing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var project models.Project
		if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// CompleteProcessing seals the project with its composed artifact refs.
func (s *ProjectService) CompleteProcessing(projectID, finalMediaURL, thumbnailURL string) error {
	res := s.DB.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusProcessing).
		Updates(map[string]interface{}{
			"status":          models.ProjectStatusCompleted,
			"final_media_url": finalMediaURL,
			"thumbnail_url":   thumbnailURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// AbortProcessing reverts a failed composition back to collecting. Counters
// and contributions are untouched; the project keeps accepting.
func (s *ProjectService) AbortProcessing(projectID string) error {
	res := s.DB.Model(&models.Project{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusProcessing).
		Update("status", models.ProjectStatusCollecting)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// --- Fiber handlers (read surface + project creation) ---

// CreateProject opens a new project for contributions.
func (s *ProjectService) CreateProject(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Title           string     `json:"title"`
		Description     string     `json:"description"`
		Type            string     `json:"type"`
		ChallengeID     string     `json:"challenge_id"`
		MaxParticipants *int       `json:"max_participants"`
		Deadline        *time.Time `json:"deadline"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if !models.ValidProjectType(req.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be one of video, photo, audio, mixed"})
	}
	if req.MaxParticipants != nil && *req.MaxParticipants < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "max_participants must be positive"})
	}

	project := &models.Project{
		ID:              uuid.NewString(),
		CreatorID:       userID,
		ChallengeID:     req.ChallengeID,
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		Status:          models.ProjectStatusCollecting,
		MaxParticipants: req.MaxParticipants,
		Deadline:        req.Deadline,
	}
	if err := s.DB.Create(project).Error; err != nil {
		log.Printf("DB Error creating project: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create project"})
	}

	utils.DeleteCachePattern("projects:*")
	return c.Status(fiber.StatusCreated).JSON(project)
}

// ListProjects returns a page of projects, read through the cache when one
// is configured. Listing is outside the correctness boundary, so a stale
// hit is fine here.
func (s *ProjectService) ListProjects(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	status := c.Query("status")
	sort := c.Query("sort", "popular")

	cacheKey := fmt.Sprintf("projects:list:%s:%s:%d:%d", sort, status, limit, offset)
	var cached fiber.Map
	if utils.GetCache(cacheKey, &cached) {
		return c.JSON(cached)
	}

	orderBy := "created_at DESC"
	switch sort {
	case "popular":
		orderBy = "views_count DESC, likes_count DESC"
	case "new":
		orderBy = "created_at DESC"
	case "trending":
		orderBy = "participants_count DESC, created_at DESC"
	}

	query := s.DB.Model(&models.Project{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var projects []models.Project
	if err := query.Order(orderBy).Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		log.Printf("DB Error fetching projects: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch projects"})
	}

	payload := fiber.Map{
		"projects": projects,
		"has_more": len(projects) == limit,
	}
	utils.SetCache(cacheKey, payload, time.Minute)
	return c.JSON(payload)
}

// GetProject returns one project with its most recent participants.
// Detail reads go straight to the store; only the views counter is
// best-effort.
func (s *ProjectService) GetProject(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid project ID"})
	}

	var project models.Project
	if err := s.DB.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Project not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var participants []models.Contribution
	if err := s.DB.Where("project_id = ?", id).
		Preload("User").
		Order("is_featured DESC, created_at DESC").
		Limit(50).
		Find(&participants).Error; err != nil {
		log.Printf("DB Error fetching participants for project %s: %v", id, err)
	}

	if err := s.DB.Model(&models.Project{}).
		Where("id = ?", id).
		Update("views_count", gorm.Expr("views_count + 1")).Error; err != nil {
		log.Printf("⚠️ failed to bump views for project %s: %v", id, err)
	}

	return c.JSON(fiber.Map{
		"project":      project,
		"participants": participants,
	})
}

// LikeProject records one like per user; repeats are a no-op conflict.
func (s *ProjectService) LikeProject(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	projectID := c.Params("id")

	like := models.ProjectLike{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&like).Error; err != nil {
			return err
		}
		return tx.Model(&models.Project{}).
			Where("id = ?", projectID).
			Update("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already liked"})
		}
		log.Printf("DB Error liking project %s: %v", projectID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to like project"})
	}

	utils.DeleteCachePattern("projects:*")
	return c.JSON(fiber.Map{"message": "OK"})
}

// UnlikeProject removes the caller's like if present.
func (s *ProjectService) UnlikeProject(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	projectID := c.Params("id")

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Project{}).
			Where("id = ? AND likes_count > 0", projectID).
			Update("likes_count", gorm.Expr("likes_count - 1")).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Like not found"})
		}
		log.Printf("DB Error unliking project %s: %v", projectID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unlike project"})
	}

	utils.DeleteCachePattern("projects:*")
	return c.JSON(fiber.Map{"message": "OK"})
}
