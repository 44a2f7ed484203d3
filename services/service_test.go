package services

import (
	"testing"
	"time"

	"collective-project-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory store with the full schema. A single
// connection keeps the in-memory database alive and serializes concurrent
// transactions the way the production store would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserDevice{},
		&models.Project{},
		&models.Challenge{},
		&models.Contribution{},
		&models.ProjectLike{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Notification{},
	))
	return db
}

func newTestProjectService(t *testing.T, db *gorm.DB) *ProjectService {
	t.Helper()
	achievements := NewAchievementService(db)
	require.NoError(t, achievements.SeedCatalog())
	rewards := NewRewardService(db, DefaultRewardConfig, achievements)
	return NewProjectService(db, rewards, nil)
}

func newTestProcessor(t *testing.T, db *gorm.DB, composer Composer) *ProcessorService {
	t.Helper()
	p := NewProcessorService(db, newTestProjectService(t, db), nil, composer)
	p.MinContributions = 3
	return p
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.NewString(), Username: username}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, mutate func(*models.Project)) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:        uuid.NewString(),
		CreatorID: uuid.NewString(),
		Title:     "Test Project",
		Type:      models.ProjectTypeVideo,
		Status:    models.ProjectStatusCollecting,
	}
	if mutate != nil {
		mutate(project)
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// seedContribution inserts a contribution directly, bypassing admission, so
// orchestrator tests can shape likes and ordering freely.
func seedContribution(t *testing.T, db *gorm.DB, projectID, userID, kind string, likes int64, createdAt time.Time) *models.Contribution {
	t.Helper()
	c := &models.Contribution{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: uuid.NewString(),
		ProjectID:   projectID,
		MediaURL:    "uploads/media/" + uuid.NewString(),
		MediaKind:   kind,
		LikesCount:  likes,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
