package pipeline

import (
	"context"

	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/publisher"
)

// DealStore abstracts the persistence layer the job writes through.
type DealStore interface {
	UpsertIfAbsent(ctx context.Context, c models.DealCandidate) (bool, error)
	SelectUnposted(ctx context.Context, store models.Store, limit int) ([]models.Deal, error)
	SweepExpired(ctx context.Context, retentionDays int) (int, error)
}

// BatchPublisher posts a capped batch and reports how far it got.
type BatchPublisher interface {
	Publish(ctx context.Context, deals []models.Deal) (publisher.Result, error)
}

// CandidateValidator rejects malformed candidates before they reach
// the store.
type CandidateValidator interface {
	ValidateCandidate(c models.DealCandidate) error
}
