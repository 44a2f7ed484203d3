package services

import (
	"fmt"
	"log"

	"collective-project-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PushSender is the external push transport: best-effort, errors non-fatal
// to the caller.
type PushSender interface {
	Send(userID, title, body string, data map[string]string) (int, error)
}

// NotificationService resolves the interested user set for a lifecycle
// event and dispatches one notification per recipient. Everything here is
// fire-and-forget: transport and store errors are logged per recipient and
// never reach the triggering request.
type NotificationService struct {
	DB   *gorm.DB
	Push PushSender
}

func NewNotificationService(db *gorm.DB, push PushSender) *NotificationService {
	return &NotificationService{DB: db, Push: push}
}

// NotifyNewContribution tells the project creator and every prior
// contributor (minus the new contributor, minus the creator) that someone
// joined.
func (s *NotificationService) NotifyNewContribution(projectID, contributorID string) {
	var project models.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		log.Printf("⚠️ [Notify] project %s not found for new-contribution event: %v", projectID, err)
		return
	}

	var contributor models.User
	contributorName := "Someone"
	if err := s.DB.First(&contributor, "id = ?", contributorID).Error; err == nil {
		contributorName = contributor.Username
	}

	recipients := map[string]bool{}
	if project.CreatorID != "" && project.CreatorID != contributorID {
		recipients[project.CreatorID] = true
	}

	var priorContributors []string
	if err := s.DB.Model(&models.Contribution{}).
		Where("project_id = ? AND user_id NOT IN ?", projectID, []string{contributorID, project.CreatorID}).
		Distinct("user_id").
		Pluck("user_id", &priorContributors).Error; err != nil {
		log.Printf("⚠️ [Notify] failed to resolve contributors for project %s: %v", projectID, err)
	}
	for _, id := range priorContributors {
		recipients[id] = true
	}

	title := "New participant!"
	body := fmt.Sprintf("%s joined the project \"%s\"", contributorName, project.Title)
	data := map[string]string{"type": "new_contribution", "project_id": projectID}

	for userID := range recipients {
		s.send(userID, title, body, data)
	}
}

// NotifyProjectCompleted tells every distinct contributor the composed
// artifact is ready.
func (s *NotificationService) NotifyProjectCompleted(projectID string) {
	var project models.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		log.Printf("⚠️ [Notify] project %s not found for completed event: %v", projectID, err)
		return
	}

	var contributors []string
	if err := s.DB.Model(&models.Contribution{}).
		Where("project_id = ?", projectID).
		Distinct("user_id").
		Pluck("user_id", &contributors).Error; err != nil {
		log.Printf("⚠️ [Notify] failed to resolve contributors for project %s: %v", projectID, err)
		return
	}

	title := "Project completed!"
	body := fmt.Sprintf("The project \"%s\" is ready to watch!", project.Title)
	data := map[string]string{"type": "project_completed", "project_id": projectID}

	for _, userID := range contributors {
		s.send(userID, title, body, data)
	}
}

// send dispatches to the transport and stores the row. Both halves are
// best-effort.
func (s *NotificationService) send(userID, title, body string, data map[string]string) {
	if s.Push != nil {
		if _, err := s.Push.Send(userID, title, body, data); err != nil {
			log.Printf("⚠️ [Notify] push to user %s failed: %v", userID, err)
		}
	}

	notification := models.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	}
	if err := s.DB.Create(&notification).Error; err != nil {
		log.Printf("⚠️ [Notify] failed to store notification for user %s: %v", userID, err)
	}
}
