package services

import (
	"testing"
	"time"

	"collective-project-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyContributionRewardIdempotent(t *testing.T) {
	db := newTestDB(t)
	achievements := NewAchievementService(db)
	require.NoError(t, achievements.SeedCatalog())
	rewards := NewRewardService(db, DefaultRewardConfig, achievements)

	user := createTestUser(t, db, "bob")
	project := createTestProject(t, db, nil)
	c := seedContribution(t, db, project.ID, user.ID, models.MediaKindVideo, 0, time.Now())

	first, err := rewards.ApplyContributionReward(nil, user.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultRewardConfig.ContributionXP, first.Experience)
	assert.Equal(t, DefaultRewardConfig.ContributionCoins, first.Coins)
	// Base credit plus the FIRST_CONTRIBUTION bonus
	assert.Equal(t, DefaultRewardConfig.ContributionXP+100, first.NewExperience)
	assert.Equal(t, DefaultRewardConfig.ContributionCoins+10, first.NewCoins)
	assert.Equal(t, 1, first.NewLevel)

	// Retrying the same contribution is a zero-delta no-op
	second, err := rewards.ApplyContributionReward(nil, user.ID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, second.Experience)
	assert.Zero(t, second.Coins)
	assert.Equal(t, first.NewExperience, second.NewExperience)
	assert.Equal(t, first.NewCoins, second.NewCoins)

	var u models.User
	require.NoError(t, db.First(&u, "id = ?", user.ID).Error)
	assert.Equal(t, first.NewExperience, u.Experience)
	assert.Equal(t, first.NewCoins, u.Coins)

	var unlocked int64
	require.NoError(t, db.Model(&models.UserAchievement{}).
		Where("user_id = ?", user.ID).
		Count(&unlocked).Error)
	assert.Equal(t, int64(1), unlocked)
}

func TestApplyContributionRewardUserNotFound(t *testing.T) {
	db := newTestDB(t)
	rewards := NewRewardService(db, DefaultRewardConfig, nil)
	project := createTestProject(t, db, nil)
	c := seedContribution(t, db, project.ID, uuid.NewString(), models.MediaKindVideo, 0, time.Now())

	_, err := rewards.ApplyContributionReward(nil, c.UserID, c.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAutoUnlockIdempotent(t *testing.T) {
	db := newTestDB(t)
	achievements := NewAchievementService(db)
	require.NoError(t, achievements.SeedCatalog())

	user := createTestUser(t, db, "carol")
	project := createTestProject(t, db, nil)
	seedContribution(t, db, project.ID, user.ID, models.MediaKindVideo, 0, time.Now())

	require.NoError(t, achievements.AutoUnlockAchievements(nil, user.ID))
	require.NoError(t, achievements.AutoUnlockAchievements(nil, user.ID))

	var unlocked int64
	require.NoError(t, db.Model(&models.UserAchievement{}).
		Where("user_id = ?", user.ID).
		Count(&unlocked).Error)
	assert.Equal(t, int64(1), unlocked)

	// The one-time bonus was credited exactly once
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", user.ID).Error)
	assert.Equal(t, int64(100), u.Experience)
	assert.Equal(t, int64(10), u.Coins)
}

func TestAutoUnlockLevelAndFeatured(t *testing.T) {
	db := newTestDB(t)
	achievements := NewAchievementService(db)
	require.NoError(t, achievements.SeedCatalog())

	user := &models.User{ID: uuid.NewString(), Username: "vet", Experience: 10000}
	require.NoError(t, db.Create(user).Error)

	project := createTestProject(t, db, nil)
	c := seedContribution(t, db, project.ID, user.ID, models.MediaKindVideo, 0, time.Now())
	require.NoError(t, db.Model(&models.Contribution{}).
		Where("id = ?", c.ID).
		Update("is_featured", true).Error)

	require.NoError(t, achievements.AutoUnlockAchievements(nil, user.ID))

	var codes []string
	require.NoError(t, db.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", user.ID).
		Pluck("achievements.code", &codes).Error)
	assert.ElementsMatch(t, []string{"FIRST_CONTRIBUTION", "FEATURED_AUTHOR", "LEVEL_5"}, codes)
}
