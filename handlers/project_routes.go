// handlers/project_routes.go
package handlers

import (
	"errors"
	"log"
	"path/filepath"

	"collective-project-system/middleware"
	"collective-project-system/services"
	"collective-project-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupProjectRoutes(app *fiber.App, projectService *services.ProjectService, processorService *services.ProcessorService) {
	// 🔓 Public routes — no user context, but still behind Gateway auth
	app.Get("/projects", projectService.ListProjects)
	app.Get("/projects/:id", projectService.GetProject)
	app.Get("/projects/:id/events", projectService.StreamProjectEventsSSE)

	// 🔐 Secured routes — require user context from the gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/projects", projectService.CreateProject)
	secured.Post("/projects/:id/like", projectService.LikeProject)
	secured.Delete("/projects/:id/like", projectService.UnlikeProject)

	secured.Post("/projects/:id/contributions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		projectID := c.Params("id")

		var req struct {
			ChallengeID     string `json:"challenge_id"`
			MediaURL        string `json:"media_url"`
			MediaKind       string `json:"media_kind"`
			DurationSeconds *int   `json:"duration_seconds"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.MediaURL == "" || req.MediaKind == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "media_url and media_kind are required"})
		}
		if req.ChallengeID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "challenge_id is required"})
		}

		result, err := projectService.TryAdmitContribution(
			projectID, userID, req.ChallengeID, req.MediaURL, req.MediaKind, req.DurationSeconds,
		)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	secured.Post("/projects/:id/process", func(c *fiber.Ctx) error {
		result, err := processorService.Process(c.Context(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/admin/sweep", func(c *fiber.Ctx) error {
		processed, err := processorService.RunAutoSweep(c.Context())
		if err != nil {
			log.Printf("❌ Manual sweep failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep failed"})
		}
		return c.JSON(fiber.Map{"processed_count": processed})
	})

	secured.Post("/media", func(c *fiber.Ctx) error {
		mediaFile, err := c.FormFile("media")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "media file is required"})
		}
		if mediaFile.Size > 200*1024*1024 { // 200MB
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file too large (max 200MB)"})
		}

		ext := filepath.Ext(mediaFile.Filename)
		if ext == "" {
			ext = ".bin"
		}
		localPath := utils.GetUploadPath(filepath.Join("media", uuid.NewString()+ext))
		if err := utils.SaveFile(mediaFile, localPath); err != nil {
			log.Printf("Failed to save media upload: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save media file"})
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"media_url": "/" + filepath.ToSlash(localPath),
		})
	})
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var compositionErr *services.CompositionError

	switch {
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateContribution),
		errors.Is(err, services.ErrAlreadyProcessed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrProjectNotAccepting),
		errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNoContributions),
		errors.Is(err, services.ErrUnsupportedProjectType):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &compositionErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("Unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
