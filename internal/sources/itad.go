package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/images"
	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/util"
)

// IsThereAnyDeal shop identifiers.
const (
	itadShopSteam = "61"
	itadShopGOG   = "35"

	itadDefaultBaseURL = "https://api.isthereanydeal.com"
	itadFetchLimit     = 200
	hotDealsKeep       = 30
)

// ITADClient queries the deals aggregator and normalizes its payloads.
type ITADClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewITADClient(apiKey string) *ITADClient {
	return &ITADClient{
		apiKey:  apiKey,
		baseURL: itadDefaultBaseURL,
		client:  &http.Client{Timeout: 25 * time.Second},
	}
}

// NewITADClientWithBaseURL is used by tests to point at a fake upstream.
func NewITADClientWithBaseURL(apiKey, baseURL string) *ITADClient {
	c := NewITADClient(apiKey)
	c.baseURL = baseURL
	return c
}

type itadPrice struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// itadEntry covers both known item layouts: deal fields at the top
// level, or nested under a "deal" object with the title alongside.
type itadEntry struct {
	ID     flexString `json:"id"`
	Title  string     `json:"title"`
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Cut    *int       `json:"cut"`
	Price  *itadPrice `json:"price"`
	Expiry string     `json:"expiry"`
	Start  string     `json:"start"`
	Deal   *itadDeal  `json:"deal"`
}

type itadDeal struct {
	ID      flexString `json:"id"`
	Title   string     `json:"title"`
	Name    string     `json:"name"`
	URL     string     `json:"url"`
	Cut     *int       `json:"cut"`
	Price   *itadPrice `json:"price"`
	Regular *itadPrice `json:"regular"`
	Expiry  string     `json:"expiry"`
	Start   string     `json:"start"`
}

// flexString tolerates upstream ids that arrive as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

// flatDeal is the shape-sniffed view of an entry with the nested/flat
// ambiguity resolved.
type flatDeal struct {
	externalID string
	title      string
	url        string
	cut        int
	hasCut     bool
	priceNew   float64
	hasPrice   bool
	priceOld   float64
	currency   string
	start      string
	expiry     string
}

func (e *itadEntry) flatten(fallbackTitle string) flatDeal {
	d := flatDeal{}
	deal := e.Deal

	pick := func(vals ...string) string {
		for _, v := range vals {
			if v != "" {
				return v
			}
		}
		return ""
	}

	if deal != nil {
		d.url = pick(deal.URL, e.URL)
		d.start = pick(deal.Start, e.Start)
		d.expiry = pick(deal.Expiry, e.Expiry)
		d.externalID = pick(string(deal.ID), string(e.ID))
		d.title = pick(e.Title, e.Name, deal.Title, deal.Name, fallbackTitle)
		if deal.Cut != nil {
			d.cut, d.hasCut = *deal.Cut, true
		}
		if deal.Price != nil && deal.Price.Amount != nil {
			d.priceNew, d.hasPrice = *deal.Price.Amount, true
			d.currency = util.NormalizeCurrency(deal.Price.Currency)
		}
		if deal.Regular != nil && deal.Regular.Amount != nil {
			d.priceOld = *deal.Regular.Amount
		}
		return d
	}

	d.url = e.URL
	d.start = e.Start
	d.expiry = e.Expiry
	d.externalID = string(e.ID)
	d.title = pick(e.Title, e.Name, fallbackTitle)
	if e.Cut != nil {
		d.cut, d.hasCut = *e.Cut, true
	}
	if e.Price != nil && e.Price.Amount != nil {
		d.priceNew, d.hasPrice = *e.Price.Amount, true
		d.currency = util.NormalizeCurrency(e.Price.Currency)
	}
	return d
}

// isFreeToKeep: a 100% cut or a price of exactly zero.
func (d flatDeal) isFreeToKeep() bool {
	return (d.hasCut && d.cut == 100) || (d.hasPrice && d.priceNew == 0)
}

// fetchShop pulls the raw deal list for one shop, sorted by discount.
// Retried with backoff; a persistent failure surfaces to the job.
func (c *ITADClient) fetchShop(ctx context.Context, shopID string) ([]flatDeal, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	endpoint := c.baseURL + "/deals/v2"
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("shops", shopID)
	q.Set("limit", strconv.Itoa(itadFetchLimit))
	q.Set("sort", "-cut")

	var body []byte
	err := util.RetryWithBackoff(ctx, 2, func(_ int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch deals for shop %s: %w", shopID, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("deals fetch for shop %s: status code %d", shopID, resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}

	rawItems, err := sniffList(body)
	if err != nil {
		return nil, fmt.Errorf("shop %s: %w", shopID, err)
	}

	fallbackTitle := "Steam deal"
	if shopID == itadShopGOG {
		fallbackTitle = "GOG giveaway"
	}

	deals := make([]flatDeal, 0, len(rawItems))
	for _, raw := range rawItems {
		var entry itadEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue // tolerate junk entries, the rest of the list is fine
		}
		d := entry.flatten(fallbackTitle)
		if d.url == "" {
			continue
		}
		deals = append(deals, d)
	}
	return deals, nil
}

// GOGFree returns GOG free-to-keep candidates. GOG URLs from the
// aggregator are direct product links, so no canonical resolution is
// needed before identity derivation.
func (c *ITADClient) GOGFree(ctx context.Context) ([]models.DealCandidate, error) {
	deals, err := c.fetchShop(ctx, itadShopGOG)
	if err != nil {
		return nil, err
	}

	var out []models.DealCandidate
	for _, d := range deals {
		if !d.isFreeToKeep() {
			continue
		}
		out = append(out, models.DealCandidate{
			Store:      models.StoreGOG,
			ExternalID: d.externalID,
			Kind:       models.KindFreeToKeep,
			Title:      d.title,
			URL:        d.url,
			Source:     "itad",
			StartsAt:   d.start,
			EndsAt:     d.expiry,
		})
	}
	return out, nil
}

// steamRun bundles the per-run state shared between the Steam free and
// hot paths: the redirect/scrape budgets and the memoizing resolver.
type steamRun struct {
	resolver     *images.Resolver
	slowBudget   *images.Budget
	scrapeBudget *images.Budget
	summary      ResolutionSummary
}

// SteamFree returns Steam free-to-keep candidates. Aggregator links are
// resolved to the final storefront URL before the caller derives
// identity; once the slow budget runs out the aggregator URL is kept,
// which can split one game across two identities until a later run
// resolves it (documented limitation).
func (c *ITADClient) SteamFree(ctx context.Context, run *steamRun) ([]models.DealCandidate, error) {
	deals, err := c.fetchShop(ctx, itadShopSteam)
	if err != nil {
		return nil, err
	}

	var out []models.DealCandidate
	for _, d := range deals {
		if !d.isFreeToKeep() {
			continue
		}

		dealURL := d.url
		if strings.Contains(dealURL, "itad.link") {
			resolved := run.resolver.ResolveCanonical(ctx, dealURL, run.slowBudget)
			run.summary.record(resolved != dealURL)
			dealURL = resolved
		}

		appID := images.ExtractSteamAppID(dealURL)
		out = append(out, models.DealCandidate{
			Store:      models.StoreSteam,
			ExternalID: appID,
			Kind:       models.KindFreeToKeep,
			Title:      d.title,
			URL:        dealURL,
			ImageURL:   c.steamImage(ctx, run, appID, dealURL),
			Source:     "itad",
			StartsAt:   d.start,
			EndsAt:     d.expiry,
		})
	}
	return out, nil
}

// SteamHotDeals returns discounted (never free) Steam candidates. The
// threshold ladder starts at minCut and relaxes to 60 then 50 until
// hotDealsKeep items are collected — the surfacing mix is policy, not
// a fixed algorithm.
func (c *ITADClient) SteamHotDeals(ctx context.Context, run *steamRun, minCut int) ([]models.DealCandidate, error) {
	deals, err := c.fetchShop(ctx, itadShopSteam)
	if err != nil {
		return nil, err
	}

	thresholds := []int{minCut}
	if minCut > 60 {
		thresholds = append(thresholds, 60)
	}
	if minCut > 50 {
		thresholds = append(thresholds, 50)
	}

	var out []models.DealCandidate
	seen := make(map[string]bool)

	for _, thr := range thresholds {
		for _, d := range deals {
			if len(out) >= hotDealsKeep {
				break
			}
			if !d.hasCut || d.cut < thr {
				continue
			}
			// Free items belong to the free path; classifying them here
			// too would post the same title under two kinds.
			if d.isFreeToKeep() {
				continue
			}
			if d.url == "" || seen[d.url] {
				continue
			}
			seen[d.url] = true

			appID := images.ExtractSteamAppID(d.url)
			if appID == "" {
				appID = run.resolver.ResolveSteamAppID(ctx, d.url, run.slowBudget)
				run.summary.record(appID != "")
			}
			if appID == "" && isDigits(d.externalID) {
				appID = d.externalID
			}

			out = append(out, models.DealCandidate{
				Store:       models.StoreSteam,
				ExternalID:  appID,
				Kind:        models.KindHotDeal,
				Title:       d.title,
				URL:         d.url,
				ImageURL:    c.steamImage(ctx, run, appID, d.url),
				Source:      "itad",
				StartsAt:    d.start,
				EndsAt:      d.expiry,
				DiscountPct: d.cut,
				PriceOld:    d.priceOld,
				PriceNew:    d.priceNew,
				Currency:    d.currency,
			})
		}
		if len(out) >= hotDealsKeep {
			break
		}
	}
	return out, nil
}

// steamImage picks a primary image for a Steam candidate: a budgeted
// page scrape when available, otherwise the most plausible CDN guess
// for the app id's generation. No image is not an error.
func (c *ITADClient) steamImage(ctx context.Context, run *steamRun, appID, dealURL string) string {
	if appID == "" {
		return ""
	}
	if run.scrapeBudget.Take() {
		if found, err := run.resolver.ScrapeSteamPage(ctx, appID, dealURL); err == nil && len(found) > 0 {
			run.summary.record(true)
			return found[0]
		}
		run.summary.record(false)
	}
	// App ids above ten million are recent titles published under the
	// hashed-path CDN shape; older ids live on the legacy hosts.
	if n, err := strconv.Atoi(appID); err == nil && n >= 10_000_000 {
		return "https://shared.akamai.steamstatic.com/store_item_assets/steam/apps/" + appID + "/header.jpg"
	}
	return "https://cdn.cloudflare.steamstatic.com/steam/apps/" + appID + "/header.jpg"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
