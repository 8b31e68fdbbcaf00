package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

const (
	primeDefaultListURL = "https://primegaming.blog/tagged/free-games-with-prime"
	primeLinkPrefix     = "https://primegaming.blog/"
	primeMaxArticles    = 5
)

// PrimeFetcher extracts candidate article links from the Prime Gaming
// blog listing. There is no structured API; the link heuristic is
// deliberately tolerant and any upstream markup change degrades to an
// empty result set rather than an uncaught failure.
type PrimeFetcher struct {
	listURL string
	client  *http.Client
}

func NewPrimeFetcher() *PrimeFetcher {
	return &PrimeFetcher{
		listURL: primeDefaultListURL,
		client:  &http.Client{Timeout: 25 * time.Second},
	}
}

// NewPrimeFetcherWithURL is used by tests to point at a fake listing page.
func NewPrimeFetcherWithURL(listURL string) *PrimeFetcher {
	f := NewPrimeFetcher()
	f.listURL = listURL
	return f
}

func (f *PrimeFetcher) Store() models.Store { return models.StorePrime }

func (f *PrimeFetcher) Fetch(ctx context.Context) ([]models.DealCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.listURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prime blog listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prime blog listing: status code %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prime blog listing: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		// Article permalinks carry a hyphenated slug; the prefix match
		// alone would also catch the tag and profile pages.
		if !strings.HasPrefix(href, primeLinkPrefix) || !strings.Contains(href, "-") {
			return true
		}
		if seen[href] {
			return true
		}
		seen[href] = true
		links = append(links, href)
		return len(links) < primeMaxArticles
	})

	out := make([]models.DealCandidate, 0, len(links))
	for _, link := range links {
		out = append(out, models.DealCandidate{
			Store:      models.StorePrime,
			ExternalID: link,
			Kind:       models.KindFreeToKeep,
			Title:      "Prime Gaming: Free Games with Prime (monthly update)",
			URL:        link,
			Source:     "primegaming.blog",
			// The article itself has no hard deadline; no expiry means
			// the record is never swept.
		})
	}
	return out, nil
}
