package services

import (
	"math"
	"os"
	"strconv"
)

// Experience curve constants. Level 2 costs ExperiencePerLevel, every level
// after that multiplies by BaseExpMultiplier.
const (
	ExperiencePerLevel = 1000
	BaseExpMultiplier  = 1.2
)

// ExperienceForLevel returns the total experience required to reach level.
func ExperienceForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Floor(ExperiencePerLevel * math.Pow(BaseExpMultiplier, float64(level-2))))
}

// LevelFromExperience returns the level held at the given experience.
// Negative experience is treated as zero so the upward search always
// terminates.
func LevelFromExperience(experience int64) int {
	if experience < 0 {
		experience = 0
	}
	level := 1
	var required int64
	for required <= experience {
		level++
		required = ExperienceForLevel(level)
	}
	return level - 1
}

// ProgressToNextLevel returns the fraction [0, 1] of the way from
// currentLevel to the next one.
func ProgressToNextLevel(experience int64, currentLevel int) float64 {
	currentLevelExp := ExperienceForLevel(currentLevel)
	nextLevelExp := ExperienceForLevel(currentLevel + 1)
	total := nextLevelExp - currentLevelExp
	if total <= 0 {
		return 0
	}
	progress := float64(experience-currentLevelExp) / float64(total)
	return math.Min(1, math.Max(0, progress))
}

// RewardConfig defines the per-contribution credit. Tunable via env so
// product can adjust without a deploy.
type RewardConfig struct {
	ContributionXP     int64
	ContributionCoins  int64
	FeaturedBonusXP    int64
	FeaturedBonusCoins int64
}

var DefaultRewardConfig = RewardConfig{
	ContributionXP:     50,
	ContributionCoins:  5,
	FeaturedBonusXP:    200,
	FeaturedBonusCoins: 20,
}

// LoadRewardConfig reads the tunables from env, falling back to defaults.
func LoadRewardConfig() RewardConfig {
	cfg := DefaultRewardConfig
	cfg.ContributionXP = envInt64("REWARD_EXPERIENCE", cfg.ContributionXP)
	cfg.ContributionCoins = envInt64("REWARD_COINS", cfg.ContributionCoins)
	cfg.FeaturedBonusXP = envInt64("REWARD_FEATURED_EXPERIENCE", cfg.FeaturedBonusXP)
	cfg.FeaturedBonusCoins = envInt64("REWARD_FEATURED_COINS", cfg.FeaturedBonusCoins)
	return cfg
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
