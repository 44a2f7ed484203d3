package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"collective-project-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubComposer struct {
	mu              sync.Mutex
	mergeCalls      int
	slideshowCalls  int
	thumbnailCalls  int
	mergeInputs     []string
	slideshowInputs []string
	failMerge       bool

	// Invoked after a merge is recorded, outside the stub's lock, so tests
	// can interleave store mutations with a composition in flight.
	onMerge func()
}

func (s *stubComposer) MergeVideos(ctx context.Context, inputs []string, outputPath string, opts MergeOptions) error {
	s.mu.Lock()
	s.mergeCalls++
	s.mergeInputs = append([]string(nil), inputs...)
	fail := s.failMerge
	hook := s.onMerge
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return errors.New("encoder exited with status 1")
	}
	return nil
}

func (s *stubComposer) CreateSlideshow(ctx context.Context, inputs []string, outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slideshowCalls++
	s.slideshowInputs = append([]string(nil), inputs...)
	return nil
}

func (s *stubComposer) ExtractThumbnail(ctx context.Context, videoPath, outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbnailCalls++
	return nil
}

func TestProcessVideo(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) { p.ParticipantsCount = 5 })

	base := time.Now().Add(-time.Hour)
	likes := []int64{5, 3, 9, 1, 2}
	var urls []string
	var top *models.Contribution
	for i, l := range likes {
		c := seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, l, base.Add(time.Duration(i)*time.Minute))
		urls = append(urls, c.MediaURL)
		if l == 9 {
			top = c
		}
	}

	result, err := proc.Process(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, result.ParticipantsCount)
	assert.True(t, strings.HasPrefix(result.FinalMediaURL, "/uploads/projects/"), result.FinalMediaURL)
	assert.True(t, strings.HasPrefix(result.ThumbnailURL, "/uploads/thumbnails/"), result.ThumbnailURL)

	assert.Equal(t, 1, composer.mergeCalls)
	assert.Equal(t, 1, composer.thumbnailCalls)
	// Submission order drives the composition sequence
	assert.Equal(t, urls, composer.mergeInputs)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCompleted, fresh.Status)
	assert.Equal(t, result.FinalMediaURL, fresh.FinalMediaURL)

	// 5 contributions: top decile rounds up to a single featured slot
	var featured []models.Contribution
	require.NoError(t, db.Where("project_id = ? AND is_featured = ?", project.ID, true).Find(&featured).Error)
	require.Len(t, featured, 1)
	assert.Equal(t, top.ID, featured[0].ID)
}

func TestProcessPhoto(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) {
		p.Type = models.ProjectTypePhoto
		p.ParticipantsCount = 20
	})

	base := time.Now().Add(-time.Hour)
	var first string
	for i := 0; i < 20; i++ {
		c := seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindPhoto, int64(20-i), base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			first = c.MediaURL
		}
	}

	result, err := proc.Process(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, composer.slideshowCalls)
	assert.Zero(t, composer.mergeCalls)
	// The first photo as submitted doubles as the thumbnail
	assert.Equal(t, first, result.ThumbnailURL)

	var featuredCount int64
	require.NoError(t, db.Model(&models.Contribution{}).
		Where("project_id = ? AND is_featured = ?", project.ID, true).
		Count(&featuredCount).Error)
	assert.Equal(t, int64(2), featuredCount)
}

func TestProcessToolFailure(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{failMerge: true}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) { p.ParticipantsCount = 3 })
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, base.Add(time.Duration(i)*time.Minute))
	}

	_, err := proc.Process(context.Background(), project.ID)
	var compErr *CompositionError
	require.ErrorAs(t, err, &compErr)

	// Rolled back: project keeps collecting, contributions untouched
	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCollecting, fresh.Status)
	assert.Empty(t, fresh.FinalMediaURL)

	var count int64
	require.NoError(t, db.Model(&models.Contribution{}).Where("project_id = ?", project.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var featuredCount int64
	require.NoError(t, db.Model(&models.Contribution{}).
		Where("project_id = ? AND is_featured = ?", project.ID, true).
		Count(&featuredCount).Error)
	assert.Zero(t, featuredCount)
}

// Two concurrent Process calls on the same project: the status claim lets
// exactly one through.
func TestProcessConcurrent(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) { p.ParticipantsCount = 3 })
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, base.Add(time.Duration(i)*time.Minute))
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := proc.Process(context.Background(), project.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, lost := 0, 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
			lost++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, lost)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCompleted, fresh.Status)
}

func TestProcessEmpty(t *testing.T) {
	db := newTestDB(t)
	proc := newTestProcessor(t, db, &stubComposer{})
	project := createTestProject(t, db, nil)

	_, err := proc.Process(context.Background(), project.ID)
	assert.ErrorIs(t, err, ErrNoContributions)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCollecting, fresh.Status)
}

func TestProcessAudio(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) {
		p.Type = models.ProjectTypeAudio
		p.ParticipantsCount = 2
	})
	base := time.Now().Add(-time.Hour)
	first := seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindAudio, 0, base)
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindAudio, 7, base.Add(time.Minute))

	result, err := proc.Process(context.Background(), project.ID)
	require.NoError(t, err)
	// Earliest submission is the artifact, no tool involved
	assert.Equal(t, first.MediaURL, result.FinalMediaURL)
	assert.Empty(t, result.ThumbnailURL)
	assert.Zero(t, composer.mergeCalls)
	assert.Zero(t, composer.slideshowCalls)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCompleted, fresh.Status)
}

func TestProcessMixedUnsupported(t *testing.T) {
	db := newTestDB(t)
	proc := newTestProcessor(t, db, &stubComposer{})

	project := createTestProject(t, db, func(p *models.Project) {
		p.Type = models.ProjectTypeMixed
		p.ParticipantsCount = 2
	})
	base := time.Now().Add(-time.Hour)
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, base)
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindPhoto, 0, base.Add(time.Minute))

	_, err := proc.Process(context.Background(), project.ID)
	assert.ErrorIs(t, err, ErrUnsupportedProjectType)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCollecting, fresh.Status)
}

func TestProcessNotFound(t *testing.T) {
	db := newTestDB(t)
	proc := newTestProcessor(t, db, &stubComposer{})

	_, err := proc.Process(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

// A store failure while sealing must not strand the project in processing,
// where the sweep would never find it again.
func TestProcessSealFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) { p.ParticipantsCount = 2 })
	base := time.Now().Add(-time.Hour)
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, base)
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, base.Add(time.Minute))

	var failSeal bool
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("fail_seal", func(tx *gorm.DB) {
		if !failSeal {
			return
		}
		if _, ok := tx.Statement.Model.(*models.Project); !ok {
			return
		}
		if dest, ok := tx.Statement.Dest.(map[string]interface{}); ok && dest["status"] == models.ProjectStatusCompleted {
			tx.AddError(errors.New("store unavailable"))
		}
	}))
	composer.onMerge = func() { failSeal = true }

	_, err := proc.Process(context.Background(), project.ID)
	require.Error(t, err)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCollecting, fresh.Status)
	assert.Empty(t, fresh.FinalMediaURL)
}

// When another writer moved the project while composition ran, the loser
// reports the lost race and leaves the winner's state alone.
func TestProcessLosesSealRace(t *testing.T) {
	db := newTestDB(t)
	composer := &stubComposer{}
	proc := newTestProcessor(t, db, composer)

	project := createTestProject(t, db, func(p *models.Project) { p.ParticipantsCount = 1 })
	seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, time.Now().Add(-time.Hour))

	composer.onMerge = func() {
		require.NoError(t, db.Model(&models.Project{}).
			Where("id = ?", project.ID).
			Update("status", models.ProjectStatusCompleted).Error)
	}

	_, err := proc.Process(context.Background(), project.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var fresh models.Project
	require.NoError(t, db.First(&fresh, "id = ?", project.ID).Error)
	assert.Equal(t, models.ProjectStatusCompleted, fresh.Status)
}
