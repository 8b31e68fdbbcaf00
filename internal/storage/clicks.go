package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// RecordClick inserts a click event. Insert-only; events are never
// updated and survive their deal being swept.
func (s *Store) RecordClick(ctx context.Context, event models.ClickEvent) error {
	event.CreatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return nil
}

// ClickStat is one row of the analytics dashboard.
type ClickStat struct {
	DealID string
	Title  string
	Store  string
	Clicks int64
}

// TopClickedDeals aggregates click counts per deal over the given
// window. Deals already swept show up with an empty title — the click
// log intentionally outlives them.
func (s *Store) TopClickedDeals(ctx context.Context, since time.Time, limit int) ([]ClickStat, error) {
	var stats []ClickStat
	err := s.db.WithContext(ctx).
		Table("click_events").
		Select("click_events.deal_id, deals.title, deals.store, COUNT(*) AS clicks").
		Joins("LEFT JOIN deals ON deals.id = click_events.deal_id").
		Where("click_events.created_at >= ?", since).
		Group("click_events.deal_id").
		Order("clicks DESC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks per deal: %w", err)
	}
	return stats, nil
}

// SourceStat is a click count per traffic-source tag.
type SourceStat struct {
	SourceTag string
	Clicks    int64
}

// ClicksBySource aggregates clicks per traffic source over the window.
func (s *Store) ClicksBySource(ctx context.Context, since time.Time) ([]SourceStat, error) {
	var stats []SourceStat
	err := s.db.WithContext(ctx).
		Table("click_events").
		Select("source_tag, COUNT(*) AS clicks").
		Where("created_at >= ?", since).
		Group("source_tag").
		Order("clicks DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks per source: %w", err)
	}
	return stats, nil
}
