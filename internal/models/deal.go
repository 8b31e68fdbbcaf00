package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store identifies a storefront.
type Store string

const (
	StoreSteam Store = "steam"
	StoreEpic  Store = "epic"
	StoreGOG   Store = "gog"
	StorePrime Store = "prime"
)

// Kind classifies a promotion.
type Kind string

const (
	KindFreeToKeep  Kind = "free_to_keep"
	KindFreeWeekend Kind = "free_weekend"
	KindHotDeal     Kind = "hot_deal"
)

// FreeKinds are the promotion kinds eligible for channel posting.
var FreeKinds = []Kind{KindFreeToKeep, KindFreeWeekend}

// DealCandidate is the normalized, producer-side record every source
// fetcher emits. It is ephemeral; the store derives a Deal from it.
type DealCandidate struct {
	Store      Store  `validate:"required,oneof=steam epic gog prime"`
	ExternalID string
	Kind       Kind   `validate:"required,oneof=free_to_keep free_weekend hot_deal"`
	Title      string `validate:"required"`
	URL        string `validate:"required,url"`
	ImageURL   string `validate:"omitempty,url"`
	Source     string
	// ISO-8601 timestamps; empty means no known start/expiry.
	StartsAt string
	EndsAt   string

	// hot_deal only
	DiscountPct int     `validate:"gte=0,lte=100"`
	PriceOld    float64 `validate:"gte=0"`
	PriceNew    float64 `validate:"gte=0"`
	Currency    string
}

// Deal is the persistent form of a candidate.
type Deal struct {
	ID          string `gorm:"primaryKey"`
	Store       string `gorm:"index"`
	ExternalID  string
	Kind        string `gorm:"index"`
	Title       string
	URL         string
	ImageURL    string
	Source      string
	StartsAt    string
	EndsAt      string
	DiscountPct int
	PriceOld    float64
	PriceNew    float64
	Currency    string
	Posted      bool      `gorm:"index;default:false"`
	CreatedAt   time.Time `gorm:"index"`
}

func (Deal) TableName() string { return "deals" }

// FreeGame is a hand-curated always-free title shown on the index page.
// Seeded statically, never fetched.
type FreeGame struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Store     string `gorm:"not null"`
	Title     string `gorm:"not null"`
	URL       string `gorm:"not null;uniqueIndex"`
	ImageURL  string
	Note      string
	Sort      int `gorm:"default:100"`
	CreatedAt time.Time
}

func (FreeGame) TableName() string { return "free_games" }

// ClickEvent is an insert-only analytics record. DealID is a weak
// reference: a click may outlive its deal once the deal is swept.
type ClickEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DealID    string `gorm:"index"`
	SourceTag string `gorm:"index"`
	UserAgent string
	Referer   string
	CreatedAt time.Time `gorm:"index"`
}

func (ClickEvent) TableName() string { return "click_events" }

// DealID derives the stable identity for a candidate. Two candidates
// from the same store with the same final URL collapse to one record,
// so repeated polling of an unchanged upstream item cannot duplicate
// it or re-trigger posting. ExternalID is deliberately left out of the
// key: it is absent or inconsistent across sources, the URL is not.
func DealID(store Store, url string) string {
	sum := sha256.Sum256([]byte(string(store) + "|" + url))
	return hex.EncodeToString(sum[:])[:24]
}

// ToDeal converts a candidate into its persistent form. CreatedAt is
// left zero; the store stamps it on first insert.
func (c DealCandidate) ToDeal() Deal {
	return Deal{
		ID:          DealID(c.Store, c.URL),
		Store:       string(c.Store),
		ExternalID:  c.ExternalID,
		Kind:        string(c.Kind),
		Title:       c.Title,
		URL:         c.URL,
		ImageURL:    c.ImageURL,
		Source:      c.Source,
		StartsAt:    c.StartsAt,
		EndsAt:      c.EndsAt,
		DiscountPct: c.DiscountPct,
		PriceOld:    c.PriceOld,
		PriceNew:    c.PriceNew,
		Currency:    c.Currency,
	}
}
