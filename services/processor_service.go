package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"collective-project-system/models"
	"collective-project-system/utils"

	"gorm.io/gorm"

	"github.com/gosimple/slug"
)

// ProcessorService is the composition orchestrator: it drives a ready
// project from collecting through processing to completed, invoking the
// external composition tool and rolling back on failure.
type ProcessorService struct {
	DB            *gorm.DB
	Projects      *ProjectService
	Notifications *NotificationService
	Composer      Composer

	// Tool invocations are bounded; a timeout counts as a tool failure.
	ComposeTimeout time.Duration

	ClipSeconds int
	Resolution  string

	// Sweep readiness threshold for projects with no deadline and no cap.
	MinContributions int
}

func NewProcessorService(db *gorm.DB, projects *ProjectService, notifications *NotificationService, composer Composer) *ProcessorService {
	return &ProcessorService{
		DB:               db,
		Projects:         projects,
		Notifications:    notifications,
		Composer:         composer,
		ComposeTimeout:   time.Duration(envInt64("COMPOSE_TIMEOUT_MINUTES", 10)) * time.Minute,
		ClipSeconds:      int(envInt64("CLIP_SECONDS", 5)),
		Resolution:       envString("OUTPUT_RESOLUTION", "720p"),
		MinContributions: int(envInt64("SWEEP_MIN_CONTRIBUTIONS", 10)),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ProcessResult summarizes a successful composition.
type ProcessResult struct {
	ProjectID         string `json:"project_id"`
	ParticipantsCount int    `json:"participants_count"`
	FinalMediaURL     string `json:"final_media_url"`
	ThumbnailURL      string `json:"thumbnail_url"`
}

// Process seals one project. The collecting → processing CAS inside
// BeginProcessing is the exclusivity gate: a concurrent caller gets
// ErrAlreadyProcessed and must not retry. No lock is held during the tool
// invocation — admissions to the project are rejected by the status check
// alone, and other projects are unaffected.
func (s *ProcessorService) Process(ctx context.Context, projectID string) (*ProcessResult, error) {
	var project models.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	if err := s.Projects.BeginProcessing(projectID); err != nil {
		return nil, err
	}

	// Creation order defines the composition sequence.
	var contributions []models.Contribution
	if err := s.DB.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&contributions).Error; err != nil {
		s.rollback(projectID)
		return nil, err
	}
	if len(contributions) == 0 {
		s.rollback(projectID)
		return nil, ErrNoContributions
	}

	composeCtx, cancel := context.WithTimeout(ctx, s.ComposeTimeout)
	defer cancel()

	finalMediaURL, thumbnailURL, err := s.compose(composeCtx, &project, contributions)
	if err != nil {
		s.rollback(projectID)
		if errors.Is(err, ErrUnsupportedProjectType) {
			return nil, err
		}
		return nil, &CompositionError{Cause: err}
	}

	if err := s.Projects.CompleteProcessing(projectID, finalMediaURL, thumbnailURL); err != nil {
		// A transient store failure here would otherwise strand the project
		// in processing, out of the sweep's reach. ErrInvalidTransition means
		// someone else already moved it, so their state stands.
		if !errors.Is(err, ErrInvalidTransition) {
			s.rollback(projectID)
		}
		return nil, err
	}

	s.markFeatured(contributions)

	utils.DeleteCachePattern("projects:*")
	if s.Notifications != nil {
		go s.Notifications.NotifyProjectCompleted(projectID)
	}

	return &ProcessResult{
		ProjectID:         projectID,
		ParticipantsCount: len(contributions),
		FinalMediaURL:     finalMediaURL,
		ThumbnailURL:      thumbnailURL,
	}, nil
}

// compose dispatches to the tool per project type and returns the artifact
// and thumbnail refs.
func (s *ProcessorService) compose(ctx context.Context, project *models.Project, contributions []models.Contribution) (string, string, error) {
	base := slug.Make(project.Title)
	if base == "" {
		base = project.ID
	}
	stamp := time.Now().UnixMilli()

	switch project.Type {
	case models.ProjectTypeVideo:
		refs := mediaRefs(contributions, models.MediaKindVideo)
		if len(refs) == 0 {
			return "", "", fmt.Errorf("no video contributions to compose")
		}
		outPath := utils.GetUploadPath(filepath.Join("projects", fmt.Sprintf("%s_%d.mp4", base, stamp)))
		if err := s.Composer.MergeVideos(ctx, refs, outPath, MergeOptions{
			ClipSeconds: s.ClipSeconds,
			Resolution:  s.Resolution,
		}); err != nil {
			return "", "", err
		}
		thumbPath := utils.GetUploadPath(filepath.Join("thumbnails", fmt.Sprintf("%s_%d.jpg", base, stamp)))
		if err := s.Composer.ExtractThumbnail(ctx, outPath, thumbPath); err != nil {
			return "", "", err
		}
		return s.publish(outPath), s.publish(thumbPath), nil

	case models.ProjectTypePhoto:
		refs := mediaRefs(contributions, models.MediaKindPhoto)
		if len(refs) == 0 {
			return "", "", fmt.Errorf("no photo contributions to compose")
		}
		outPath := utils.GetUploadPath(filepath.Join("projects", fmt.Sprintf("%s_%d.mp4", base, stamp)))
		if err := s.Composer.CreateSlideshow(ctx, refs, outPath); err != nil {
			return "", "", err
		}
		// Thumbnail is the first photo as submitted
		return s.publish(outPath), refs[0], nil

	case models.ProjectTypeAudio:
		// No mixing: the first contribution is the artifact. Current
		// policy, kept deliberately.
		return contributions[0].MediaURL, "", nil

	default:
		return "", "", ErrUnsupportedProjectType
	}
}

// publish moves a composed file to R2 when configured; otherwise the local
// upload path is the ref, served statically.
func (s *ProcessorService) publish(localPath string) string {
	if !utils.R2Enabled() {
		return "/" + filepath.ToSlash(localPath)
	}
	key := filepath.ToSlash(localPath)
	url, err := utils.UploadArtifactToR2(localPath, key)
	if err != nil {
		log.Printf("⚠️ R2 upload failed for %s, keeping local ref: %v", localPath, err)
		return "/" + filepath.ToSlash(localPath)
	}
	return url
}

// markFeatured flags the top decile by likes, earliest submission breaking
// ties, never fewer than one.
func (s *ProcessorService) markFeatured(contributions []models.Contribution) {
	ranked := make([]models.Contribution, len(contributions))
	copy(ranked, contributions)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].LikesCount != ranked[j].LikesCount {
			return ranked[i].LikesCount > ranked[j].LikesCount
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})

	n := len(ranked) / 10
	if n < 1 {
		n = 1
	}
	for _, c := range ranked[:n] {
		if err := s.DB.Model(&models.Contribution{}).
			Where("id = ?", c.ID).
			Update("is_featured", true).Error; err != nil {
			log.Printf("⚠️ failed to feature contribution %s: %v", c.ID, err)
		}
	}
}

func (s *ProcessorService) rollback(projectID string) {
	if err := s.Projects.AbortProcessing(projectID); err != nil {
		log.Printf("❌ failed to roll back project %s to collecting: %v", projectID, err)
	}
}

func mediaRefs(contributions []models.Contribution, kind string) []string {
	var refs []string
	for _, c := range contributions {
		if c.MediaKind == kind {
			refs = append(refs, c.MediaURL)
		}
	}
	return refs
}
