package services

import (
	"errors"
	"fmt"
	"log"

	"collective-project-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedCatalog inserts the built-in achievement catalog, leaving existing
// rows alone so codes stay editable in the DB.
func (s *AchievementService) SeedCatalog() error {
	for _, a := range models.AchievementCatalog {
		a.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&a).Error; err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

// AutoUnlockAchievements checks every catalog entry against the user's
// current stats and unlocks any newly satisfied one. Unlocking is
// idempotent: the (user, achievement) unique index makes a repeat a no-op.
func (s *AchievementService) AutoUnlockAchievements(tx *gorm.DB, userID string) error {
	if tx == nil {
		tx = s.DB
	}

	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	var contributions int64
	if err := tx.Model(&models.Contribution{}).
		Where("user_id = ?", userID).
		Count(&contributions).Error; err != nil {
		return err
	}
	var featured int64
	if err := tx.Model(&models.Contribution{}).
		Where("user_id = ? AND is_featured = ?", userID, true).
		Count(&featured).Error; err != nil {
		return err
	}
	level := int64(LevelFromExperience(user.Experience))

	var catalog []models.Achievement
	if err := tx.Find(&catalog).Error; err != nil {
		return err
	}

	for _, achievement := range catalog {
		if !meetsThreshold(achievement.Threshold, contributions, featured, level) {
			continue
		}
		unlocked, err := s.unlock(tx, userID, &achievement)
		if err != nil {
			return err
		}
		if unlocked {
			log.Printf("🏅 Achievement unlocked: %s → %s", achievement.Code, userID)
		}
	}
	return nil
}

// unlock records the achievement and applies its one-time credit. Returns
// false without error when the user already holds it.
func (s *AchievementService) unlock(tx *gorm.DB, userID string, achievement *models.Achievement) (bool, error) {
	var count int64
	if err := tx.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievement.ID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	ua := models.UserAchievement{
		ID:            uuid.NewString(),
		UserID:        userID,
		AchievementID: achievement.ID,
	}
	if err := tx.Create(&ua).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}

	if achievement.RewardExperience > 0 || achievement.RewardCoins > 0 {
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"experience": gorm.Expr("experience + ?", achievement.RewardExperience),
				"coins":      gorm.Expr("coins + ?", achievement.RewardCoins),
			}).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

func meetsThreshold(req map[string]int64, contributions, featured, level int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "contributions":
			if contributions < required {
				return false
			}
		case "featured":
			if featured < required {
				return false
			}
		case "level":
			if level < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}
