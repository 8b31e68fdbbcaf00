package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// Store is the single source of truth for posting state. No in-memory
// posting cache exists anywhere: a process restart must neither re-post
// already-posted records nor lose pending ones.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database, applies the pragmas that
// keep readers unblocked by the ingestion writer, and migrates the
// schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&models.Deal{}, &models.FreeGame{}, &models.ClickEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertIfAbsent inserts the candidate's deal iff no record with the
// same derived identity exists. An existing record is left completely
// untouched — posted flag and created_at included. Reports whether a
// new record was created so the caller can count new items without a
// second query.
func (s *Store) UpsertIfAbsent(ctx context.Context, c models.DealCandidate) (bool, error) {
	deal := c.ToDeal()
	deal.CreatedAt = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&deal)
	if res.Error != nil {
		return false, fmt.Errorf("failed to upsert deal %s: %w", deal.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GetDeal returns a deal by id, or nil when absent.
func (s *Store) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	var deal models.Deal
	err := s.db.WithContext(ctx).First(&deal, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal %s: %w", id, err)
	}
	return &deal, nil
}

// SelectUnposted returns unposted free-promotion records, permanent
// giveaways before time-limited ones, oldest-first within each group so
// every record is eventually posted. Store "" means all storefronts.
func (s *Store) SelectUnposted(ctx context.Context, store models.Store, limit int) ([]models.Deal, error) {
	kinds := make([]string, len(models.FreeKinds))
	for i, k := range models.FreeKinds {
		kinds[i] = string(k)
	}

	q := s.db.WithContext(ctx).
		Where("posted = ? AND kind IN ?", false, kinds)
	if store != "" {
		q = q.Where("store = ?", string(store))
	}

	var deals []models.Deal
	err := q.
		Order("CASE kind WHEN 'free_to_keep' THEN 0 ELSE 1 END").
		Order("created_at ASC").
		Limit(limit).
		Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select unposted deals: %w", err)
	}
	return deals, nil
}

// MarkPosted flips the posted flag. Idempotent: marking an
// already-posted record again is a no-op, never an error.
func (s *Store) MarkPosted(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id = ?", id).
		Update("posted", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark deal %s posted: %w", id, err)
	}
	return nil
}

// ResetPosted clears the posted flag on the n most recently ingested
// deals. Manual re-post path only.
func (s *Store) ResetPosted(ctx context.Context, n int) error {
	sub := s.db.Model(&models.Deal{}).
		Select("id").
		Order("created_at DESC").
		Limit(n)
	err := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id IN (?)", sub).
		Update("posted", false).Error
	if err != nil {
		return fmt.Errorf("failed to reset posted flags: %w", err)
	}
	return nil
}

// SweepExpired deletes records whose ends_at is parseable and lies more
// than retentionDays in the past. Records with a missing or unparseable
// ends_at are never deleted: an unreadable timestamp means "no known
// expiry", not "expired". Returns the number of deleted records.
//
// Timestamps are stored as upstream-provided ISO strings, so the cutoff
// comparison happens here rather than in SQL.
func (s *Store) SweepExpired(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var rows []struct {
		ID     string
		EndsAt string
	}
	err := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("ends_at IS NOT NULL AND ends_at != ''").
		Select("id", "ends_at").
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to scan deals for sweeping: %w", err)
	}

	var toDelete []string
	for _, row := range rows {
		t, ok := models.ParseISO(row.EndsAt)
		if !ok {
			continue
		}
		if t.Before(cutoff) {
			toDelete = append(toDelete, row.ID)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Delete(&models.Deal{}, "id IN ?", toDelete)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired deals: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListByKind returns deals of one kind for the view layer, soonest
// expiry first with no-expiry records at the end. Never filters on
// ingestion health: the page always renders whatever is stored.
func (s *Store) ListByKind(ctx context.Context, kind models.Kind, limit int) ([]models.Deal, error) {
	var deals []models.Deal
	err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("CASE WHEN ends_at IS NULL OR ends_at = '' THEN 1 ELSE 0 END").
		Order("ends_at ASC").
		Order("created_at DESC").
		Limit(limit).
		Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s deals: %w", kind, err)
	}
	return deals, nil
}

// CountDeals returns the total number of stored deals.
func (s *Store) CountDeals(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Deal{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count deals: %w", err)
	}
	return n, nil
}
