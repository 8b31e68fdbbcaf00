package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

const epicDefaultBaseURL = "https://store-site-backend-static-ipv4.ak.epicgames.com"

// Short product slugs (".../p/<slug>" with nothing after) are often
// promotional placeholders, not real pages; they must be verified.
var epicShortSlugRe = regexp.MustCompile(`/p/[^/]+$`)

// EpicFetcher calls Epic's public free-games promotions endpoint
// directly — no aggregator in between.
type EpicFetcher struct {
	baseURL string
	locale  string
	country string
	client  *http.Client
	now     func() time.Time
}

func NewEpicFetcher(locale, country string) *EpicFetcher {
	return &EpicFetcher{
		baseURL: epicDefaultBaseURL,
		locale:  locale,
		country: country,
		client:  &http.Client{Timeout: 25 * time.Second},
		now:     time.Now,
	}
}

// NewEpicFetcherWithBaseURL is used by tests to point at a fake upstream.
func NewEpicFetcherWithBaseURL(baseURL, locale, country string) *EpicFetcher {
	f := NewEpicFetcher(locale, country)
	f.baseURL = baseURL
	return f
}

func (f *EpicFetcher) Store() models.Store { return models.StoreEpic }

type epicResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []epicElement `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

type epicElement struct {
	ID              string `json:"id"`
	Namespace       string `json:"namespace"`
	Title           string `json:"title"`
	ProductSlug     string `json:"productSlug"`
	URLSlug         string `json:"urlSlug"`
	ProductPageSlug string `json:"productPageSlug"`
	OfferMappings   []struct {
		PageSlug string `json:"pageSlug"`
		PageType string `json:"pageType"`
	} `json:"offerMappings"`
	KeyImages []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"keyImages"`
	Price struct {
		TotalPrice struct {
			DiscountPrice *int `json:"discountPrice"`
		} `json:"totalPrice"`
	} `json:"price"`
	Promotions *struct {
		PromotionalOffers []struct {
			PromotionalOffers []epicOffer `json:"promotionalOffers"`
		} `json:"promotionalOffers"`
	} `json:"promotions"`
}

type epicOffer struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (f *EpicFetcher) Fetch(ctx context.Context) ([]models.DealCandidate, error) {
	endpoint := f.baseURL + "/freeGamesPromotions"
	q := url.Values{}
	q.Set("locale", f.locale)
	q.Set("country", f.country)
	q.Set("allowCountries", f.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch epic promotions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("epic promotions: status code %d", resp.StatusCode)
	}

	var payload epicResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode epic promotions: %w", err)
	}

	now := f.now().UTC()
	var out []models.DealCandidate
	for _, e := range payload.Data.Catalog.SearchStore.Elements {
		offer, ok := e.activeOffer(now)
		if !ok {
			// No currently-active window: the offer does not exist yet
			// from this system's perspective. Not past, not upcoming.
			continue
		}

		title := e.Title
		if title == "" {
			title = "Epic freebie"
		}

		pageURL := f.productURL(e)
		if epicShortSlugRe.MatchString(pageURL) {
			pageURL = f.canonicalize(ctx, pageURL)
		}

		var img string
		for _, ki := range e.KeyImages {
			if ki.URL != "" {
				img = ki.URL
				break
			}
		}

		kind := models.KindFreeWeekend
		if dp := e.Price.TotalPrice.DiscountPrice; dp != nil && *dp == 0 {
			kind = models.KindFreeToKeep
		}

		externalID := e.ID
		if externalID == "" {
			externalID = e.Namespace
		}
		if externalID == "" {
			externalID = pageURL
		}

		out = append(out, models.DealCandidate{
			Store:      models.StoreEpic,
			ExternalID: externalID,
			Kind:       kind,
			Title:      title,
			URL:        pageURL,
			ImageURL:   img,
			Source:     "epic",
			StartsAt:   offer.StartDate,
			EndsAt:     offer.EndDate,
		})
	}
	return out, nil
}

// activeOffer finds the first promotional window containing now,
// flattening the nested offer blocks first. A window starting exactly
// at now is live; one ending exactly at now is already over, matching
// the expiry boundary everywhere else (models.ActiveAt).
func (e *epicElement) activeOffer(now time.Time) (epicOffer, bool) {
	if e.Promotions == nil {
		return epicOffer{}, false
	}
	for _, block := range e.Promotions.PromotionalOffers {
		for _, off := range block.PromotionalOffers {
			start, okS := models.ParseISO(off.StartDate)
			end, okE := models.ParseISO(off.EndDate)
			if okS && okE && !now.Before(start) && end.After(now) {
				return off, true
			}
		}
	}
	return epicOffer{}, false
}

// productURL resolves the storefront page for an element: the
// structured offerMappings entry is the reliable path, the legacy slug
// fields are a fallback, and the generic free-games landing page is the
// last resort when no slug exists at all.
func (f *EpicFetcher) productURL(e epicElement) string {
	loc := strings.SplitN(f.locale, "-", 2)[0]
	if loc == "" {
		loc = "en"
	}

	for _, m := range e.OfferMappings {
		if m.PageType == "productHome" && m.PageSlug != "" {
			return "https://store.epicgames.com/" + loc + "/p/" + strings.Trim(m.PageSlug, "/")
		}
	}

	slug := e.ProductPageSlug
	if slug == "" {
		slug = e.URLSlug
	}
	if slug == "" {
		slug = e.ProductSlug
	}
	slug = strings.Trim(strings.TrimSuffix(strings.TrimSpace(slug), "/home"), "/")
	if slug != "" {
		return "https://store.epicgames.com/" + loc + "/p/" + slug
	}

	return "https://store.epicgames.com/" + loc + "/free-games"
}

// canonicalize verifies a short slug with one redirect-following GET.
// On any failure the unverified URL is kept; the identity key then
// carries the short slug, which a later run may resolve differently.
func (f *EpicFetcher) canonicalize(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return resp.Request.URL.String()
	}
	return rawURL
}
