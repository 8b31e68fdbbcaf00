package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/images"
	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// Channel subscribers are mostly UTC+6; deadlines render in their zone.
var captionZone = time.FixedZone("UTC+6", 6*60*60)

// DealMarker persists the posted flag. Marking happens atomically with
// each successful send so a crash mid-batch re-sends nothing.
type DealMarker interface {
	MarkPosted(ctx context.Context, id string) error
}

// Sender is the outbound messaging channel.
type Sender interface {
	Enabled() bool
	SendPhoto(ctx context.Context, photoURL, caption, buttonText, buttonURL string) error
	SendMessage(ctx context.Context, text, buttonText, buttonURL string) error
}

// Result reports how much of a batch actually went out, so callers can
// detect partial failure.
type Result struct {
	Queued int
	Posted int
}

// Publisher posts a pre-capped batch of unposted deals to the channel.
type Publisher struct {
	sender Sender
	marker DealMarker
}

func New(sender Sender, marker DealMarker) *Publisher {
	return &Publisher{sender: sender, marker: marker}
}

// Publish sends each deal in order, marking it posted immediately after
// a successful delivery. The first delivery failure stops the whole
// batch: channel failures are usually systemic (rate limit, auth,
// outage), so pressing on would fail repeatedly and reorder the feed.
// Remaining records stay unposted for the next run, untouched.
func (p *Publisher) Publish(ctx context.Context, deals []models.Deal) (Result, error) {
	res := Result{Queued: len(deals)}
	if !p.sender.Enabled() {
		slog.Warn("channel posting skipped, no credentials configured", "queued", res.Queued)
		return res, nil
	}

	for _, deal := range deals {
		if err := p.send(ctx, deal); err != nil {
			slog.Error("channel send failed, deferring rest of batch",
				"deal", deal.ID, "posted", res.Posted, "queued", res.Queued, "error", err)
			return res, fmt.Errorf("send failed for deal %s: %w", deal.ID, err)
		}
		if err := p.marker.MarkPosted(ctx, deal.ID); err != nil {
			// The message is out but the flag write failed; stop so at
			// most this one record can ever be double-posted.
			return res, fmt.Errorf("failed to mark deal %s posted: %w", deal.ID, err)
		}
		res.Posted++
	}
	return res, nil
}

func (p *Publisher) send(ctx context.Context, deal models.Deal) error {
	caption := renderCaption(deal)
	buttonText := buttonLabel(models.Kind(deal.Kind))

	photo := deal.ImageURL
	if photo == "" && deal.Store == string(models.StoreSteam) {
		photo = images.SteamHeaderFromURL(deal.URL)
	}

	if photo != "" {
		return p.sender.SendPhoto(ctx, photo, caption, buttonText, deal.URL)
	}
	return p.sender.SendMessage(ctx, caption+"\n\n"+deal.URL, buttonText, deal.URL)
}

func renderCaption(deal models.Deal) string {
	var b strings.Builder

	b.WriteString(storeBadge(deal.Store))
	b.WriteString(" · ")
	b.WriteString(kindHeader(models.Kind(deal.Kind)))
	b.WriteString("\n\n*")
	b.WriteString(deal.Title)
	b.WriteString("*\n")

	if deal.Store == string(models.StorePrime) {
		b.WriteString("⚠️ Требуется Prime Gaming/подписка.\n")
	}
	if deal.EndsAt != "" {
		b.WriteString("⏳ До: ")
		b.WriteString(formatExpiry(deal.EndsAt))
		b.WriteString("\n")
	}

	b.WriteString("\n#freegame #")
	b.WriteString(deal.Store)
	b.WriteString(" #giveaway")
	return b.String()
}

func storeBadge(store string) string {
	switch models.Store(store) {
	case models.StoreSteam:
		return "🎮 Steam"
	case models.StoreEpic:
		return "🟦 Epic"
	case models.StoreGOG:
		return "🟪 GOG"
	case models.StorePrime:
		return "🟨 Prime"
	default:
		if store != "" {
			return store
		}
		return "Store"
	}
}

func kindHeader(kind models.Kind) string {
	switch kind {
	case models.KindFreeToKeep:
		return "🎁 *Бесплатно навсегда*"
	case models.KindFreeWeekend:
		return "⏱ *Free Weekend (временно)*"
	default:
		return "🎮 *Акция*"
	}
}

func buttonLabel(kind models.Kind) string {
	switch kind {
	case models.KindFreeToKeep:
		return "✅ Забрать навсегда"
	case models.KindFreeWeekend:
		return "🎮 Играть бесплатно"
	default:
		return "🎮 Открыть"
	}
}

// formatExpiry renders a deadline in the channel's timezone, falling
// back to the raw upstream string when it cannot be parsed.
func formatExpiry(endsAt string) string {
	t, ok := models.ParseISO(endsAt)
	if !ok {
		return endsAt
	}
	return t.In(captionZone).Format("02.01.2006 15:04") + " (UTC+6)"
}
