package sources

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/freeredeemgames/freerg-bot/internal/images"
	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// SteamFetcher runs both Steam paths — giveaways and hot deals — in one
// fetch, sharing the per-run resolution budgets between them.
type SteamFetcher struct {
	itad         *ITADClient
	hotMinCut    int
	slowBudget   int
	scrapeBudget int
}

func NewSteamFetcher(itad *ITADClient, hotMinCut, slowBudget, scrapeBudget int) *SteamFetcher {
	return &SteamFetcher{
		itad:         itad,
		hotMinCut:    hotMinCut,
		slowBudget:   slowBudget,
		scrapeBudget: scrapeBudget,
	}
}

func (f *SteamFetcher) Store() models.Store { return models.StoreSteam }

func (f *SteamFetcher) Fetch(ctx context.Context) ([]models.DealCandidate, error) {
	run := &steamRun{
		resolver:     images.NewResolver(),
		slowBudget:   images.NewBudget(f.slowBudget),
		scrapeBudget: images.NewBudget(f.scrapeBudget),
	}

	var free, hot []models.DealCandidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		free, err = f.itad.SteamFree(gctx, run)
		return err
	})
	g.Go(func() error {
		var err error
		hot, err = f.itad.SteamHotDeals(gctx, run, f.hotMinCut)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if run.summary.Degraded > 0 {
		slog.Info("steam resolution summary",
			"attempted", run.summary.Attempted,
			"resolved", run.summary.Resolved,
			"degraded", run.summary.Degraded,
			"slow_budget_left", run.slowBudget.Left())
	}

	return append(free, hot...), nil
}

// GOGFetcher wraps the aggregator's GOG freebie path.
type GOGFetcher struct {
	itad *ITADClient
}

func NewGOGFetcher(itad *ITADClient) *GOGFetcher {
	return &GOGFetcher{itad: itad}
}

func (f *GOGFetcher) Store() models.Store { return models.StoreGOG }

func (f *GOGFetcher) Fetch(ctx context.Context) ([]models.DealCandidate, error) {
	return f.itad.GOGFree(ctx)
}
