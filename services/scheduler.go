// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// StartStreakScheduler runs the lapsed-streak sweep on an interval. Streaks
// are reset lazily when a user acts after a gap; the sweep keeps the stored
// counter honest for users who simply stopped showing up.
func (g *GamificationService) StartStreakScheduler(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Error().Err(err).Msg("failed to create streak scheduler")
		return
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			expired, err := g.Ledger.ExpireLapsedStreaks(context.Background(), time.Now())
			if err != nil {
				log.Error().Err(err).Msg("streak sweep failed")
				return
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("🔥 lapsed streaks reset")
			}
		}),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule streak sweep")
	}
}
