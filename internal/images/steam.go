package images

// Steam CDN asset shapes. Newly published titles live under the hashed
// store_item_assets path on the shared.* hosts; legacy titles only exist
// under the flat steam/apps path on the old CDN hosts. The wide capsule
// is the last-resort asset: it exists for almost every app but is the
// wrong aspect ratio for a header slot.
const (
	cdnSharedAkamai     = "https://shared.akamai.steamstatic.com/store_item_assets/steam/apps/"
	cdnSharedFastly     = "https://shared.fastly.steamstatic.com/store_item_assets/steam/apps/"
	cdnSharedCloudflare = "https://shared.cloudflare.steamstatic.com/store_item_assets/steam/apps/"
	cdnLegacyCloudflare = "https://cdn.cloudflare.steamstatic.com/steam/apps/"
	cdnLegacyAkamai     = "https://cdn.akamai.steamstatic.com/steam/apps/"
	cdnLegacyAkamaiHD   = "https://steamcdn-a.akamaihd.net/steam/apps/"
)

// ExtractSteamAppID pulls a numeric app id out of a Steam URL without
// allocating or touching the network. Two shapes are recognized: the
// /app/<id> path segment and an ?appid=<id> query parameter. Returns ""
// when neither is present (e.g. an opaque aggregator redirect link).
func ExtractSteamAppID(url string) string {
	if url == "" {
		return ""
	}
	if id := digitsAfter(url, "/app/"); id != "" {
		return id
	}
	if id := digitsAfter(url, "?appid="); id != "" {
		return id
	}
	return digitsAfter(url, "&appid=")
}

func digitsAfter(s, marker string) string {
	start := indexOf(s, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return ""
	}
	return s[start:end]
}

func indexOf(s, sub string) int {
	n := len(s) - len(sub)
	for i := 0; i <= n; i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// SteamHeaderCandidates returns cover-art URLs for an app id in
// decreasing order of fidelity and likelihood. The hashed-path hosts
// come first (recent titles), the legacy flat-path hosts next, and the
// wide capsule closes the list as a final fallback.
func SteamHeaderCandidates(appID string) []string {
	if appID == "" {
		return nil
	}
	return []string{
		cdnSharedAkamai + appID + "/header.jpg",
		cdnSharedFastly + appID + "/header.jpg",
		cdnSharedCloudflare + appID + "/header.jpg",
		cdnLegacyCloudflare + appID + "/header.jpg",
		cdnLegacyAkamai + appID + "/header.jpg",
		cdnLegacyAkamaiHD + appID + "/header.jpg",
		cdnLegacyCloudflare + appID + "/capsule_616x353.jpg",
	}
}

// SteamHeaderFromURL is the cheap render-path helper: app id straight
// from the URL, first candidate as the image. No network, ever.
func SteamHeaderFromURL(url string) string {
	appID := ExtractSteamAppID(url)
	if appID == "" {
		return ""
	}
	return SteamHeaderCandidates(appID)[0]
}
