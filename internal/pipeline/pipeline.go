package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/freeredeemgames/freerg-bot/internal/config"
	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/sources"
	"github.com/freeredeemgames/freerg-bot/internal/util"
)

// RunResult is the structured outcome of one ingestion run for one
// storefront. Err marks a recoverable failure; the process never dies
// because of a run.
type RunResult struct {
	Store   models.Store
	Skipped bool
	Fetched int
	New     int
	Queued  int
	Posted  int
	Err     error
}

// Pipeline owns everything one ingestion run needs, constructed once at
// process start and passed around explicitly — no ambient globals.
//
// A single mutex guards runs across ALL storefronts, not one per store:
// the publisher writes to one shared channel and one shared store, so
// concurrent runs would interleave posting order and double-spend the
// channel's rate budget.
type Pipeline struct {
	store     DealStore
	publisher BatchPublisher
	validator CandidateValidator
	fetchers  map[models.Store]sources.Fetcher
	cfg       *config.Config

	mu sync.Mutex
}

func New(store DealStore, pub BatchPublisher, v CandidateValidator, fetchers []sources.Fetcher, cfg *config.Config) *Pipeline {
	byStore := make(map[models.Store]sources.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byStore[f.Store()] = f
	}
	return &Pipeline{
		store:     store,
		publisher: pub,
		validator: v,
		fetchers:  byStore,
		cfg:       cfg,
	}
}

// Run executes one fetch→normalize→upsert→select→publish cycle for the
// given storefront. If another run holds the lock the cycle is skipped
// entirely, not queued: the scheduler's cadence is coarse enough that a
// missed overlap is cheaper than an unbounded backlog behind a stuck
// run.
func (p *Pipeline) Run(ctx context.Context, store models.Store) RunResult {
	if !p.mu.TryLock() {
		slog.Info("ingestion run skipped, another run in progress", "store", store)
		return RunResult{Store: store, Skipped: true}
	}
	defer p.mu.Unlock()

	res := RunResult{Store: store}

	fetcher, ok := p.fetchers[store]
	if !ok {
		res.Err = fmt.Errorf("unknown store: %s", store)
		return res
	}

	candidates, err := fetcher.Fetch(ctx)
	if err != nil {
		// Recoverable: this source yields nothing this cycle, the next
		// scheduled tick retries from scratch.
		slog.Warn("fetch failed, skipping cycle for source", "store", store, "error", err)
		res.Err = fmt.Errorf("fetch %s: %w", store, err)
		return res
	}
	res.Fetched = len(candidates)

	for _, c := range candidates {
		if normalized, err := util.NormalizeURL(c.URL); err == nil {
			c.URL = normalized
		}
		if err := p.validator.ValidateCandidate(c); err != nil {
			slog.Warn("dropping invalid candidate", "store", store, "title", c.Title, "error", err)
			continue
		}
		inserted, err := p.store.UpsertIfAbsent(ctx, c)
		if err != nil {
			// Storage failures are a hard failure of this invocation
			// only; the scheduler's next tick retries independently.
			res.Err = fmt.Errorf("upsert for %s: %w", store, err)
			return res
		}
		if inserted {
			res.New++
		}
	}

	// The cap is storefront policy, so it is enforced here — the
	// publisher itself is storefront-agnostic.
	batch, err := p.store.SelectUnposted(ctx, store, p.cfg.PostCap(store))
	if err != nil {
		res.Err = fmt.Errorf("select unposted for %s: %w", store, err)
		return res
	}

	pubRes, err := p.publisher.Publish(ctx, batch)
	res.Queued = pubRes.Queued
	res.Posted = pubRes.Posted
	if err != nil {
		res.Err = fmt.Errorf("publish for %s: %w", store, err)
	}

	slog.Info("ingestion run finished",
		"store", store, "fetched", res.Fetched, "new", res.New,
		"queued", res.Queued, "posted", res.Posted, "error", res.Err)
	return res
}

// Sweep removes deals whose expiry passed more than the retention
// window ago. Records without a parseable expiry are never touched.
func (p *Pipeline) Sweep(ctx context.Context) (int, error) {
	deleted, err := p.store.SweepExpired(ctx, p.cfg.RetentionDays)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("swept expired deals", "deleted", deleted, "retention_days", p.cfg.RetentionDays)
	}
	return deleted, nil
}
