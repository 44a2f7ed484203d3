package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"collective-project-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamProjectEventsSSE streams a project's lifecycle to live viewers:
// every new contribution as it lands, and a single completed event when the
// project is sealed. Best-effort channel, no delivery guarantee.
func (s *ProjectService) StreamProjectEventsSSE(c *fiber.Ctx) error {
	projectID := c.Params("id")

	var project models.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Project not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	lastStatus := project.Status

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastCreatedAt time.Time

		// Initialize cursor so only contributions after connect are pushed
		var latest models.Contribution
		if err := s.DB.
			Where("project_id = ?", projectID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for project %s: %v", projectID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var fresh []models.Contribution
				err := s.DB.
					Where("project_id = ? AND created_at > ?", projectID, lastCreatedAt).
					Preload("User").
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					log.Printf("SSE query error for project %s: %v", projectID, err)
					continue
				}

				if len(fresh) > 0 {
					lastCreatedAt = fresh[len(fresh)-1].CreatedAt
					for _, contribution := range fresh {
						payload, _ := json.Marshal(contribution)
						fmt.Fprintf(w, "event: contribution\ndata: %s\n\n", payload)
					}
				}

				var current models.Project
				if err := s.DB.First(&current, "id = ?", projectID).Error; err == nil {
					if current.Status != lastStatus {
						lastStatus = current.Status
						payload, _ := json.Marshal(fiber.Map{
							"status":          current.Status,
							"final_media_url": current.FinalMediaURL,
							"thumbnail_url":   current.ThumbnailURL,
						})
						fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
					}
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

				if lastStatus == models.ProjectStatusCompleted {
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
