package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExperienceForLevel(t *testing.T) {
	assert.Equal(t, int64(0), ExperienceForLevel(0))
	assert.Equal(t, int64(0), ExperienceForLevel(1))
	assert.Equal(t, int64(1000), ExperienceForLevel(2))
	assert.Equal(t, int64(1200), ExperienceForLevel(3))
}

func TestExperienceForLevelMonotonic(t *testing.T) {
	prev := ExperienceForLevel(1)
	for level := 2; level <= 60; level++ {
		cur := ExperienceForLevel(level)
		assert.Greater(t, cur, prev, "level %d", level)
		prev = cur
	}
}

func TestLevelFromExperience(t *testing.T) {
	assert.Equal(t, 1, LevelFromExperience(0))
	assert.Equal(t, 1, LevelFromExperience(999))
	assert.Equal(t, 2, LevelFromExperience(1000))
	assert.Equal(t, 1, LevelFromExperience(-50))
}

func TestLevelBoundaries(t *testing.T) {
	for level := 2; level <= 40; level++ {
		threshold := ExperienceForLevel(level)
		assert.Equal(t, level, LevelFromExperience(threshold), "at threshold for level %d", level)
		assert.Equal(t, level-1, LevelFromExperience(threshold-1), "just below threshold for level %d", level)
	}
}

// The next level must always be reachable: meeting its threshold raises the
// derived level.
func TestNextLevelReachable(t *testing.T) {
	for _, xp := range []int64{0, 1, 500, 1000, 1234, 5000, 50000, 1000000} {
		level := LevelFromExperience(xp)
		next := ExperienceForLevel(level + 1)
		assert.Greater(t, LevelFromExperience(next), level, "from xp %d", xp)
	}
}

func TestProgressToNextLevel(t *testing.T) {
	assert.Equal(t, 0.0, ProgressToNextLevel(0, 1))
	assert.InDelta(t, 0.5, ProgressToNextLevel(500, 1), 0.001)
	assert.Equal(t, 1.0, ProgressToNextLevel(1200, 2))

	for xp := int64(-200); xp <= 6000; xp += 113 {
		level := LevelFromExperience(xp)
		p := ProgressToNextLevel(xp, level)
		assert.GreaterOrEqual(t, p, 0.0, "xp %d", xp)
		assert.LessOrEqual(t, p, 1.0, "xp %d", xp)
	}
}
