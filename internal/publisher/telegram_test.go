package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTelegramClient_Enabled(t *testing.T) {
	if NewTelegramClient("", "@chan").Enabled() {
		t.Error("Expected disabled without token")
	}
	if NewTelegramClient("token", "").Enabled() {
		t.Error("Expected disabled without chat id")
	}
	if !NewTelegramClient("token", "@chan").Enabled() {
		t.Error("Expected enabled with both credentials")
	}
}

func TestSendPhoto_RequestShape(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewTelegramClientWithBaseURL(srv.URL, "test-token", "@chan")
	err := c.SendPhoto(context.Background(), "https://img.example.com/x.jpg", "caption", "Open", "https://example.com")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotPath != "/bottest-token/sendPhoto" {
		t.Errorf("Expected bot path with method, got %q", gotPath)
	}
	if payload["chat_id"] != "@chan" || payload["photo"] != "https://img.example.com/x.jpg" {
		t.Errorf("Expected chat and photo in payload, got %v", payload)
	}
	if payload["parse_mode"] != "Markdown" {
		t.Errorf("Expected Markdown parse mode, got %v", payload["parse_mode"])
	}
	markup, _ := payload["reply_markup"].(map[string]any)
	if markup == nil || markup["inline_keyboard"] == nil {
		t.Errorf("Expected inline keyboard in payload, got %v", payload["reply_markup"])
	}
}

func TestSendMessage_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := NewTelegramClientWithBaseURL(srv.URL, "test-token", "@missing")
	err := c.SendMessage(context.Background(), "text", "Open", "https://example.com")
	if err == nil {
		t.Fatal("Expected error for ok:false response")
	}
}

func TestCall_MalformedResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	c := NewTelegramClientWithBaseURL(srv.URL, "test-token", "@chan")
	if err := c.SendMessage(context.Background(), "text", "Open", "https://example.com"); err == nil {
		t.Fatal("Expected error for non-JSON response")
	}
}
