package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScrapeSteamPage_FindsEmbeddedAssets(t *testing.T) {
	page := `<html><body>
		<img src="https://shared.akamai.steamstatic.com/store_item_assets/steam/apps/3241660/deadbeefdeadbeefdeadbeefdeadbeef/header.jpg">
		<img src="https://cdn.cloudflare.steamstatic.com/steam/apps/3241660/capsule_616x353.jpg">
		<img src="https://cdn.cloudflare.steamstatic.com/steam/apps/999/header.jpg">
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	r := NewResolver()
	found, err := r.ScrapeSteamPage(context.Background(), "3241660", srv.URL+"/app/3241660/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 assets for the target app, got %d: %v", len(found), found)
	}
	if !strings.Contains(found[0], "store_item_assets") {
		t.Errorf("Expected hashed asset ranked first, got %q", found[0])
	}
	for _, u := range found {
		if strings.Contains(u, "/999/") {
			t.Errorf("Expected assets of other apps filtered out, found %q", u)
		}
	}
}

func TestScrapeSteamPage_OGImageFallback(t *testing.T) {
	page := `<html><head><meta property="og:image" content="https://images.example.com/cover.jpg"></head><body>no cdn links</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	r := NewResolver()
	found, err := r.ScrapeSteamPage(context.Background(), "12345", srv.URL+"/app/12345/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(found) != 1 || found[0] != "https://images.example.com/cover.jpg" {
		t.Errorf("Expected og:image fallback, got %v", found)
	}
}

func TestScrapeSteamPage_NoAssetsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer srv.Close()

	r := NewResolver()
	if _, err := r.ScrapeSteamPage(context.Background(), "777", srv.URL+"/app/777/"); err == nil {
		t.Error("Expected error when no assets are found")
	}
}

func TestScrapeSteamPage_RequiresAppID(t *testing.T) {
	r := NewResolver()
	if _, err := r.ScrapeSteamPage(context.Background(), "", "https://store.steampowered.com/app/1/"); err == nil {
		t.Error("Expected error for empty app id")
	}
}

func TestScrapeSteamPage_SendsAgeCookies(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		w.Write([]byte(`<img src="https://cdn.cloudflare.steamstatic.com/steam/apps/10/header.jpg">`))
	}))
	defer srv.Close()

	r := NewResolver()
	if _, err := r.ScrapeSteamPage(context.Background(), "10", srv.URL+"/app/10/"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(cookie, "mature_content=1") {
		t.Errorf("Expected age bypass cookies on the request, got %q", cookie)
	}
}
