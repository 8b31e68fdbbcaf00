package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// --- Mock implementations ---

type sentItem struct {
	method  string
	photo   string
	caption string
	button  string
	url     string
}

type mockSender struct {
	enabled bool
	sent    []sentItem
	failAt  int // 1-based index of the send that fails; 0 = never
}

func (m *mockSender) Enabled() bool { return m.enabled }

func (m *mockSender) SendPhoto(_ context.Context, photoURL, caption, buttonText, buttonURL string) error {
	if m.failAt > 0 && len(m.sent)+1 == m.failAt {
		return errors.New("telegram is down")
	}
	m.sent = append(m.sent, sentItem{"photo", photoURL, caption, buttonText, buttonURL})
	return nil
}

func (m *mockSender) SendMessage(_ context.Context, text, buttonText, buttonURL string) error {
	if m.failAt > 0 && len(m.sent)+1 == m.failAt {
		return errors.New("telegram is down")
	}
	m.sent = append(m.sent, sentItem{"message", "", text, buttonText, buttonURL})
	return nil
}

type mockMarker struct {
	marked  []string
	markErr error
}

func (m *mockMarker) MarkPosted(_ context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, id)
	return nil
}

func testDeal(id, store string, kind models.Kind, image string) models.Deal {
	return models.Deal{
		ID:       id,
		Store:    store,
		Kind:     string(kind),
		Title:    "Game " + id,
		URL:      "https://example.com/" + id,
		ImageURL: image,
	}
}

// --- Tests ---

func TestPublish_PhotoWhenImageKnown(t *testing.T) {
	sender := &mockSender{enabled: true}
	marker := &mockMarker{}
	p := New(sender, marker)

	deal := testDeal("d1", "epic", models.KindFreeToKeep, "https://cdn.epic.com/key.jpg")
	res, err := p.Publish(context.Background(), []models.Deal{deal})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Posted != 1 || res.Queued != 1 {
		t.Errorf("Expected 1/1, got %+v", res)
	}
	if len(sender.sent) != 1 || sender.sent[0].method != "photo" {
		t.Fatalf("Expected one photo send, got %+v", sender.sent)
	}
	if sender.sent[0].photo != "https://cdn.epic.com/key.jpg" {
		t.Errorf("Expected stored image used, got %q", sender.sent[0].photo)
	}
	if marker.marked[0] != "d1" {
		t.Errorf("Expected deal marked posted, got %v", marker.marked)
	}
}

func TestPublish_SteamFallbackImage(t *testing.T) {
	sender := &mockSender{enabled: true}
	p := New(sender, &mockMarker{})

	deal := testDeal("d2", "steam", models.KindFreeToKeep, "")
	deal.URL = "https://store.steampowered.com/app/730/CS2"
	if _, err := p.Publish(context.Background(), []models.Deal{deal}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].method != "photo" {
		t.Fatalf("Expected photo via CDN fallback, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].photo, "/730/") {
		t.Errorf("Expected derived CDN image, got %q", sender.sent[0].photo)
	}
}

func TestPublish_MessageWhenNoImage(t *testing.T) {
	sender := &mockSender{enabled: true}
	p := New(sender, &mockMarker{})

	deal := testDeal("d3", "gog", models.KindFreeToKeep, "")
	if _, err := p.Publish(context.Background(), []models.Deal{deal}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].method != "message" {
		t.Fatalf("Expected text message, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].caption, deal.URL) {
		t.Error("Expected deal URL appended to the text message")
	}
}

func TestPublish_StopsBatchOnFirstFailure(t *testing.T) {
	sender := &mockSender{enabled: true, failAt: 2}
	marker := &mockMarker{}
	p := New(sender, marker)

	deals := []models.Deal{
		testDeal("d1", "gog", models.KindFreeToKeep, ""),
		testDeal("d2", "gog", models.KindFreeToKeep, ""),
		testDeal("d3", "gog", models.KindFreeToKeep, ""),
	}
	res, err := p.Publish(context.Background(), deals)
	if err == nil {
		t.Fatal("Expected error from failed send")
	}
	if res.Posted != 1 {
		t.Errorf("Expected 1 posted before the failure, got %d", res.Posted)
	}
	if len(marker.marked) != 1 || marker.marked[0] != "d1" {
		t.Errorf("Expected only the delivered deal marked, got %v", marker.marked)
	}
}

func TestPublish_MarkFailureStopsBatch(t *testing.T) {
	sender := &mockSender{enabled: true}
	marker := &mockMarker{markErr: errors.New("disk full")}
	p := New(sender, marker)

	deals := []models.Deal{
		testDeal("d1", "gog", models.KindFreeToKeep, ""),
		testDeal("d2", "gog", models.KindFreeToKeep, ""),
	}
	res, err := p.Publish(context.Background(), deals)
	if err == nil {
		t.Fatal("Expected error from failed mark")
	}
	if res.Posted != 0 {
		t.Errorf("Expected no deals counted posted, got %d", res.Posted)
	}
	if len(sender.sent) != 1 {
		t.Errorf("Expected the batch stopped after the first send, got %d sends", len(sender.sent))
	}
}

func TestPublish_DisabledSenderSkipsQuietly(t *testing.T) {
	sender := &mockSender{enabled: false}
	marker := &mockMarker{}
	p := New(sender, marker)

	res, err := p.Publish(context.Background(), []models.Deal{testDeal("d1", "gog", models.KindFreeToKeep, "")})
	if err != nil {
		t.Fatalf("Expected no error when disabled, got %v", err)
	}
	if res.Posted != 0 || res.Queued != 1 {
		t.Errorf("Expected queued-but-unposted, got %+v", res)
	}
	if len(marker.marked) != 0 {
		t.Errorf("Expected nothing marked while disabled, got %v", marker.marked)
	}
}

func TestRenderCaption(t *testing.T) {
	deal := testDeal("d1", "prime", models.KindFreeToKeep, "")
	deal.EndsAt = "2026-09-04T15:00:00Z"
	caption := renderCaption(deal)

	if !strings.Contains(caption, "🟨 Prime") {
		t.Errorf("Expected store badge, got %q", caption)
	}
	if !strings.Contains(caption, "*Game d1*") {
		t.Errorf("Expected bold title, got %q", caption)
	}
	if !strings.Contains(caption, "Требуется Prime") {
		t.Errorf("Expected prime subscription warning, got %q", caption)
	}
	if !strings.Contains(caption, "⏳ До: 04.09.2026 21:00 (UTC+6)") {
		t.Errorf("Expected expiry rendered in UTC+6, got %q", caption)
	}
	if !strings.Contains(caption, "#freegame #prime #giveaway") {
		t.Errorf("Expected hashtags, got %q", caption)
	}
}

func TestFormatExpiry_UnparseableKeptRaw(t *testing.T) {
	if got := formatExpiry("before the weekend"); got != "before the weekend" {
		t.Errorf("Expected raw string kept, got %q", got)
	}
}
