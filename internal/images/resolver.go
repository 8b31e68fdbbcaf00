package images

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Budget is a shared per-run allowance for expensive resolutions (one
// redirect-following request or one page scrape each). Once exhausted,
// items simply degrade instead of blocking the polling cycle.
type Budget struct {
	mu   sync.Mutex
	left int
}

func NewBudget(n int) *Budget {
	return &Budget{left: n}
}

// Take consumes one unit, reporting false once the budget is spent.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.left <= 0 {
		return false
	}
	b.left--
	return true
}

func (b *Budget) Left() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.left
}

// Resolver turns storefront URLs into canonical URLs and image
// candidates. Canonical resolutions are memoized for the lifetime of
// the Resolver, which the pipeline recreates per run — the same
// aggregator link is never resolved twice within one batch.
type Resolver struct {
	client     *http.Client
	pageClient *http.Client

	mu        sync.Mutex
	canonical map[string]string
}

func NewResolver() *Resolver {
	return &Resolver{
		client:     &http.Client{Timeout: 10 * time.Second},
		pageClient: &http.Client{Timeout: 15 * time.Second},
		canonical:  make(map[string]string),
	}
}

// ResolveCanonical follows redirects once to recover the final product
// URL behind an opaque tracking link. Budget-gated: when the shared
// budget is exhausted the input URL is returned unchanged, so callers
// cannot always guarantee a canonical URL before identity derivation.
func (r *Resolver) ResolveCanonical(ctx context.Context, rawURL string, budget *Budget) string {
	r.mu.Lock()
	if resolved, ok := r.canonical[rawURL]; ok {
		r.mu.Unlock()
		return resolved
	}
	r.mu.Unlock()

	if !budget.Take() {
		return rawURL
	}

	final, err := r.followRedirects(ctx, rawURL)
	if err != nil {
		// Cache the failure too: retrying the same dead link within
		// one run would just burn budget.
		final = rawURL
	}

	r.mu.Lock()
	r.canonical[rawURL] = final
	r.mu.Unlock()
	return final
}

func (r *Resolver) followRedirects(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), nil
}

// Primary picks a primary image and its ordered fallback chain for a
// stored deal. A pre-known image (e.g. Epic key art) is trusted as-is
// with no fallbacks. Steam URLs yield the CDN candidate ladder; other
// stores degrade to no image and the view renders a placeholder.
func (r *Resolver) Primary(store models.Store, url, knownImage string) (string, []string) {
	if knownImage != "" {
		return knownImage, nil
	}
	if store != models.StoreSteam {
		return "", nil
	}
	candidates := SteamHeaderCandidates(ExtractSteamAppID(url))
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0], candidates[1:]
}

// ResolveSteamAppID recovers an app id for a Steam deal: fast URL
// extraction first, then one budgeted redirect-following request for
// opaque links.
func (r *Resolver) ResolveSteamAppID(ctx context.Context, url string, budget *Budget) string {
	if appID := ExtractSteamAppID(url); appID != "" {
		return appID
	}
	final := r.ResolveCanonical(ctx, url, budget)
	return ExtractSteamAppID(final)
}
