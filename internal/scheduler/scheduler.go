package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/config"
	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/pipeline"
)

// Scheduler fires the ingestion job per storefront on independent
// cadences plus a daily retention sweep. All triggers funnel through
// the pipeline's single lock, so true overlap never happens — a
// contended tick is skipped, not queued.
type Scheduler struct {
	pipe *pipeline.Pipeline
	cfg  *config.Config
}

func New(pipe *pipeline.Pipeline, cfg *config.Config) *Scheduler {
	return &Scheduler{pipe: pipe, cfg: cfg}
}

// Start launches the ticker goroutines and returns immediately. All
// loops stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	cadences := []struct {
		store   models.Store
		minutes int
	}{
		{models.StoreSteam, s.cfg.SteamMinutes},
		{models.StoreEpic, s.cfg.EpicMinutes},
		{models.StoreGOG, s.cfg.GOGMinutes},
		{models.StorePrime, s.cfg.PrimeMinutes},
	}

	for _, c := range cadences {
		go s.runLoop(ctx, c.store, time.Duration(c.minutes)*time.Minute)
	}
	go s.sweepLoop(ctx)

	slog.Info("scheduler started",
		"steam_min", s.cfg.SteamMinutes, "epic_min", s.cfg.EpicMinutes,
		"gog_min", s.cfg.GOGMinutes, "prime_min", s.cfg.PrimeMinutes)
}

func (s *Scheduler) runLoop(ctx context.Context, store models.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
			res := s.pipe.Run(runCtx, store)
			cancel()
			if res.Err != nil {
				slog.Warn("scheduled run failed", "store", store, "error", res.Err)
			}
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := s.pipe.Sweep(sweepCtx); err != nil {
				slog.Warn("retention sweep failed", "error", err)
			}
			cancel()
		}
	}
}
