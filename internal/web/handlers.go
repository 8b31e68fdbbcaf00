package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freeredeemgames/freerg-bot/internal/images"
	"github.com/freeredeemgames/freerg-bot/internal/models"
)

const listLimit = 100

// dealRow is one card on the index page: the stored deal plus its
// render-time image fallback chain and expiry labels.
type dealRow struct {
	Store          string
	StoreBadge     string
	Title          string
	GoURL          string
	Image          string
	ImageFallbacks []string
	EndsAtLabel    string
	TimeLeft       string
	IsNew          bool
	Expired        bool
	DiscountPct    int
	PriceOld       float64
	PriceNew       float64
	Currency       string
}

type indexData struct {
	Keep        []dealRow
	Weekend     []dealRow
	Hot         []dealRow
	FreeGames   []models.FreeGame
	StoreFilter string
	ShowExpired bool
	TotalGames  int
	NewToday    int
}

// Index renders the deals page. It reads only what is currently stored
// — a broken ingestion cycle means a stale page, never a blank one.
func (s *Server) Index(c *gin.Context) {
	storeFilter := c.DefaultQuery("store", "all")
	showExpired := c.DefaultQuery("expired", "0") == "1"
	now := time.Now().UTC()

	ctx := c.Request.Context()
	data := indexData{StoreFilter: storeFilter, ShowExpired: showExpired}

	for _, section := range []struct {
		kind models.Kind
		dst  *[]dealRow
	}{
		{models.KindFreeToKeep, &data.Keep},
		{models.KindFreeWeekend, &data.Weekend},
		{models.KindHotDeal, &data.Hot},
	} {
		deals, err := s.store.ListByKind(ctx, section.kind, listLimit)
		if err != nil {
			// Degrade the section, keep the page.
			continue
		}
		for _, d := range deals {
			if storeFilter != "all" && d.Store != storeFilter {
				continue
			}
			active := models.ActiveAt(d.EndsAt, now)
			// Hot deals stay visible until swept; free sections hide
			// expired items unless explicitly requested.
			if section.kind != models.KindHotDeal && !active {
				if !showExpired || !models.ExpiredWithin(d.EndsAt, now, 7*24*time.Hour) {
					continue
				}
			}
			*section.dst = append(*section.dst, s.buildRow(d, now, !active))
		}
	}

	games, err := s.store.ListFreeGames(ctx, 24)
	if err == nil {
		for i := range games {
			if games[i].ImageURL == "" && games[i].Store == string(models.StoreSteam) {
				games[i].ImageURL = images.SteamHeaderFromURL(games[i].URL)
			}
		}
		data.FreeGames = games
	}

	data.TotalGames = len(data.Keep) + len(data.Weekend) + len(data.Hot)
	for _, rows := range [][]dealRow{data.Keep, data.Weekend, data.Hot} {
		for _, r := range rows {
			if r.IsNew {
				data.NewToday++
			}
		}
	}

	c.HTML(http.StatusOK, "index.tmpl", data)
}

func (s *Server) buildRow(d models.Deal, now time.Time, expired bool) dealRow {
	primary, fallbacks := s.resolver.Primary(models.Store(d.Store), d.URL, d.ImageURL)
	return dealRow{
		Store:          d.Store,
		StoreBadge:     storeBadge(d.Store),
		Title:          d.Title,
		GoURL:          "/go/" + d.ID + "?src=web",
		Image:          primary,
		ImageFallbacks: fallbacks,
		EndsAtLabel:    endsAtLabel(d.EndsAt),
		TimeLeft:       timeLeftLabel(d.EndsAt, now),
		IsNew:          models.IsNew(d.CreatedAt, now),
		Expired:        expired,
		DiscountPct:    d.DiscountPct,
		PriceOld:       d.PriceOld,
		PriceNew:       d.PriceNew,
		Currency:       d.Currency,
	}
}

// ClickRedirect records a click event and forwards to the storefront.
// The deal id is stored by value: clicks on swept deals still count,
// they just redirect home.
func (s *Server) ClickRedirect(c *gin.Context) {
	id := c.Param("id")

	event := models.ClickEvent{
		DealID:    id,
		SourceTag: c.DefaultQuery("src", "direct"),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
	// Analytics must never break navigation.
	if err := s.store.RecordClick(c.Request.Context(), event); err != nil {
		slog.Warn("failed to record click", "deal", id, "error", err)
	}

	deal, err := s.store.GetDeal(c.Request.Context(), id)
	if err != nil || deal == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, deal.URL)
}

type analyticsData struct {
	Days      int
	TopDeals  []analyticsDealRow
	BySource  []analyticsSourceRow
}

type analyticsDealRow struct {
	Title  string
	Store  string
	Clicks int64
}

type analyticsSourceRow struct {
	Source string
	Clicks int64
}

// Analytics renders click counts per deal and per traffic source.
func (s *Server) Analytics(c *gin.Context) {
	days := intQuery(c, "days", 30)
	since := time.Now().UTC().AddDate(0, 0, -days)
	ctx := c.Request.Context()

	data := analyticsData{Days: days}

	if stats, err := s.store.TopClickedDeals(ctx, since, 50); err == nil {
		for _, st := range stats {
			title := st.Title
			if title == "" {
				title = fmt.Sprintf("(removed deal %s)", st.DealID)
			}
			data.TopDeals = append(data.TopDeals, analyticsDealRow{Title: title, Store: st.Store, Clicks: st.Clicks})
		}
	}
	if stats, err := s.store.ClicksBySource(ctx, since); err == nil {
		for _, st := range stats {
			data.BySource = append(data.BySource, analyticsSourceRow{Source: st.SourceTag, Clicks: st.Clicks})
		}
	}

	c.HTML(http.StatusOK, "analytics.tmpl", data)
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < 1 {
		return def
	}
	return v
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
		return store
	}
}

func endsAtLabel(endsAt string) string {
	if endsAt == "" {
		return "ограниченно (проверь в магазине)"
	}
	t, ok := models.ParseISO(endsAt)
	if !ok {
		return endsAt
	}
	zone := time.FixedZone("UTC+6", 6*60*60)
	return t.In(zone).Format("02.01.2006 15:04") + " (UTC+6)"
}

func timeLeftLabel(endsAt string, now time.Time) string {
	t, ok := models.ParseISO(endsAt)
	if !ok {
		return ""
	}
	delta := t.Sub(now)
	if delta <= 0 {
		return "истекло"
	}
	hours := int(delta.Hours())
	switch {
	case hours >= 48:
		return fmt.Sprintf("осталось %d дн", hours/24)
	case hours >= 1:
		return fmt.Sprintf("осталось %d ч", hours)
	default:
		return fmt.Sprintf("осталось %d мин", int(delta.Minutes()))
	}
}
