package models

import (
	"time"
)

// Achievement: catalog entry (seeded at boot, editable in DB afterwards)
type Achievement struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_CONTRIBUTION"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary

	// Extra credit applied once when the achievement unlocks.
	RewardExperience int64 `gorm:"default:0" json:"reward_experience"`
	RewardCoins      int64 `gorm:"default:0" json:"reward_coins"`

	// e.g., {"contributions": 10}, {"level": 5}
	Threshold map[string]int64 `gorm:"type:jsonb;serializer:json" json:"threshold"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement: unlocked instance, at most one per (user, achievement)
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"not null;uniqueIndex:idx_user_achievements_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_user_achievements_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"autoCreateTime" json:"unlocked_at"`

	Achievement Achievement `json:"achievement,omitempty" gorm:"foreignKey:AchievementID"`
}

// Seeded achievement catalog
var AchievementCatalog = []Achievement{
	{
		Code:             "FIRST_CONTRIBUTION",
		Name:             "First Take",
		Description:      "Submitted your first contribution",
		Rarity:           "common",
		RewardExperience: 100,
		RewardCoins:      10,
		Threshold:        map[string]int64{"contributions": 1},
	},
	{
		Code:             "TEN_CONTRIBUTIONS",
		Name:             "Regular",
		Description:      "Submitted 10 contributions",
		Rarity:           "rare",
		RewardExperience: 500,
		RewardCoins:      50,
		Threshold:        map[string]int64{"contributions": 10},
	},
	{
		Code:             "FEATURED_AUTHOR",
		Name:             "Scene Stealer",
		Description:      "Had a contribution featured in a composed project",
		Rarity:           "epic",
		RewardExperience: 300,
		RewardCoins:      30,
		Threshold:        map[string]int64{"featured": 1},
	},
	{
		Code:             "LEVEL_5",
		Name:             "Getting Serious",
		Description:      "Reached level 5",
		Rarity:           "rare",
		RewardExperience: 250,
		RewardCoins:      25,
		Threshold:        map[string]int64{"level": 5},
	},
}
