// services/reward_service.go
package services

import (
	"errors"
	"log"

	"collective-project-system/models"

	"gorm.io/gorm"
)

type RewardService struct {
	DB           *gorm.DB
	Config       RewardConfig
	Achievements *AchievementService
}

func NewRewardService(db *gorm.DB, cfg RewardConfig, achievements *AchievementService) *RewardService {
	return &RewardService{DB: db, Config: cfg, Achievements: achievements}
}

// RewardResult is the feedback returned to the contributor after an
// accepted contribution.
type RewardResult struct {
	Experience          int64   `json:"experience"`
	Coins               int64   `json:"coins"`
	NewExperience       int64   `json:"new_experience"`
	NewCoins            int64   `json:"new_coins"`
	NewLevel            int     `json:"new_level"`
	ProgressToNextLevel float64 `json:"progress_to_next_level"`
}

// ApplyContributionReward credits the contributor for one accepted
// contribution: fixed XP and coins as atomic additive updates, then an
// achievement pass. Safe to retry — the reward_granted flip on the
// contribution is the dedupe gate, and a call that loses the flip returns a
// zero-delta result instead of double-crediting.
func (s *RewardService) ApplyContributionReward(tx *gorm.DB, userID, contributionID string) (*RewardResult, error) {
	if tx == nil {
		tx = s.DB
	}

	res := tx.Model(&models.Contribution{}).
		Where("id = ? AND reward_granted = ?", contributionID, false).
		Update("reward_granted", true)
	if res.Error != nil {
		return nil, res.Error
	}
	granted := res.RowsAffected > 0

	if granted {
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"experience": gorm.Expr("experience + ?", s.Config.ContributionXP),
				"coins":      gorm.Expr("coins + ?", s.Config.ContributionCoins),
			}).Error; err != nil {
			return nil, err
		}

		if s.Achievements != nil {
			if err := s.Achievements.AutoUnlockAchievements(tx, userID); err != nil {
				// Achievements must not fail the admission
				log.Printf("⚠️ achievement check failed for user %s: %v", userID, err)
			}
		}
	}

	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	level := LevelFromExperience(user.Experience)
	result := &RewardResult{
		NewExperience:       user.Experience,
		NewCoins:            user.Coins,
		NewLevel:            level,
		ProgressToNextLevel: ProgressToNextLevel(user.Experience, level),
	}
	if granted {
		result.Experience = s.Config.ContributionXP
		result.Coins = s.Config.ContributionCoins
	}
	return result, nil
}
