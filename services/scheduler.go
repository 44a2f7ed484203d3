// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"collective-project-system/models"

	"github.com/go-co-op/gocron/v2"
)

// SweepIntervalMinutes returns the sweep cadence, tunable via env.
func SweepIntervalMinutes() int64 {
	return envInt64("SWEEP_INTERVAL_MINUTES", 5)
}

// StartSweepScheduler runs the auto-sweep on a fixed cadence. Singleton
// mode drops a tick while the previous run is still going, so sweeps never
// overlap.
func (s *ProcessorService) StartSweepScheduler(ctx context.Context, interval time.Duration) {
	sched, _ := gocron.NewScheduler()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			processed, err := s.RunAutoSweep(ctx)
			if err != nil {
				log.Printf("❌ [Sweep] failed: %v", err)
				return
			}
			if processed > 0 {
				log.Printf("✅ [Sweep] composed %d projects", processed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	sched.Start()

	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
}

// RunAutoSweep finds collecting projects that are ready — deadline passed,
// participant cap reached, or (uncapped, no deadline) past the minimum
// contribution threshold — and drives each through Process. One candidate's
// failure never aborts the rest; a lost begin-processing race just means
// someone else got there first.
func (s *ProcessorService) RunAutoSweep(ctx context.Context) (int, error) {
	now := time.Now()

	var candidates []models.Project
	err := s.DB.
		Where("status = ?", models.ProjectStatusCollecting).
		Where("participants_count > 0").
		Where(
			s.DB.Where("deadline IS NOT NULL AND deadline <= ?", now).
				Or("max_participants IS NOT NULL AND participants_count >= max_participants").
				Or("deadline IS NULL AND max_participants IS NULL AND participants_count >= ?", s.MinContributions),
		).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, project := range candidates {
		if _, err := s.Process(ctx, project.ID); err != nil {
			log.Printf("❌ [Sweep] project %s: %v", project.ID, err)
			continue
		}
		processed++
		log.Printf("✅ [Sweep] project %s composed", project.ID)
	}
	return processed, nil
}
