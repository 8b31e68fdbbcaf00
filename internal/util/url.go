package util

import (
	"net/url"
	"strings"
)

// storefrontDomains lists hosts where NormalizeURL applies storefront-specific cleanup.
var storefrontDomains = []string{
	"store.steampowered.com",
	"store.epicgames.com",
	"www.gog.com",
	"gog.com",
	"gaming.amazon.com",
	"primegaming.blog",
}

func isStorefrontDomain(host string) bool {
	for _, d := range storefrontDomains {
		if host == d {
			return true
		}
	}
	return false
}

// NormalizeURL canonicalizes a storefront product URL so that the same
// page always yields the same string: HTTPS scheme, no trailing slash,
// tracking query parameters dropped. Non-storefront URLs (aggregator
// redirect links, blog articles on other hosts) pass through untouched.
func NormalizeURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}

	if !isStorefrontDomain(parsedURL.Hostname()) {
		return rawURL, nil
	}

	parsedURL.Scheme = "https"
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = parsedURL.Path[:len(parsedURL.Path)-1]
		// Clear RawPath so String() regenerates the path without the trailing slash
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	trackingParams := []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "snr", "curator_clanid"}
	for _, param := range trackingParams {
		if queryParams.Has(param) {
			queryParams.Del(param)
		}
	}
	parsedURL.RawQuery = queryParams.Encode()
	return parsedURL.String(), nil
}
