package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matches both asset generations anywhere in the page markup: the
// hashed store_item_assets shape and the legacy flat shape.
var (
	hashedAssetRe = regexp.MustCompile(`https://shared\.[a-z]+\.steamstatic\.com/store_item_assets/steam/apps/(\d+)/[a-f0-9]{30,50}/(header|capsule_616x353)\.jpg[^"'\s<>]*`)
	legacyAssetRe = regexp.MustCompile(`https://[a-z0-9.\-]+steamstatic\.com/steam/apps/(\d+)/(header|hero_capsule|capsule_616x353|library_600x900)\.jpg`)
	headerJSONRe  = regexp.MustCompile(`"header_image":"([^"]+)"`)
)

// ScrapeSteamPage fetches the storefront product page and scans its
// markup for embedded asset URLs. This is the most expensive resolution
// path and must be gated by the page-scrape budget; it exists to
// recover images for titles whose id-based CDN guesses 404.
//
// Steam serves an age-verification interstitial for mature titles; the
// fetch retries once with the bypass query parameters.
func (r *Resolver) ScrapeSteamPage(ctx context.Context, appID, pageURL string) ([]string, error) {
	if appID == "" {
		return nil, fmt.Errorf("no app id to scrape")
	}
	if pageURL == "" {
		pageURL = "https://store.steampowered.com/app/" + appID + "/"
	}

	body, finalURL, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if strings.Contains(finalURL, "/agecheck/") || strings.Contains(strings.ToLower(body), "agecheck") {
		bypassURL := "https://store.steampowered.com/app/" + appID + "/?ageDay=1&ageMonth=1&ageYear=1990"
		if retried, _, retryErr := r.fetchPage(ctx, bypassURL); retryErr == nil {
			body = retried
		}
	}

	var found []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			found = append(found, u)
		}
	}

	// Hashed-path assets first: they are what the page itself uses for
	// recent titles, so they are the most likely to exist.
	for _, m := range hashedAssetRe.FindAllStringSubmatch(body, 20) {
		if m[1] == appID {
			add(m[0])
		}
	}
	for _, m := range legacyAssetRe.FindAllStringSubmatch(body, 20) {
		if m[1] == appID {
			add(m[0])
		}
	}
	for _, m := range headerJSONRe.FindAllStringSubmatch(body, 5) {
		add(strings.ReplaceAll(m[1], `\/`, "/"))
	}

	// og:image as a structured fallback when the regex scan found nothing.
	if len(found) == 0 {
		if doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(body)); docErr == nil {
			if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
				add(og)
			}
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("no embedded assets found for app %s", appID)
	}
	return found, nil
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) (body, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	// Pre-seeded age cookies skip the interstitial for most titles.
	req.Header.Set("Cookie", "birthtime=0; mature_content=1; wants_mature_content=1; lastagecheckage=1-0-1990")

	resp, err := r.pageClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to fetch %s: status code %d", pageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return string(data), resp.Request.URL.String(), nil
}
