package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/config"
	"github.com/freeredeemgames/freerg-bot/internal/models"
	"github.com/freeredeemgames/freerg-bot/internal/publisher"
	"github.com/freeredeemgames/freerg-bot/internal/sources"
)

// --- Mock implementations ---

type mockDealStore struct {
	mu        sync.Mutex
	deals     map[string]models.Deal
	upsertErr error
	selectErr error
	swept     int
}

func newMockDealStore() *mockDealStore {
	return &mockDealStore{deals: make(map[string]models.Deal)}
}

func (m *mockDealStore) UpsertIfAbsent(_ context.Context, c models.DealCandidate) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deal := c.ToDeal()
	if _, exists := m.deals[deal.ID]; exists {
		return false, nil
	}
	m.deals[deal.ID] = deal
	return true, nil
}

func (m *mockDealStore) SelectUnposted(_ context.Context, store models.Store, limit int) ([]models.Deal, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Deal
	for _, d := range m.deals {
		if d.Posted || (store != "" && d.Store != string(store)) {
			continue
		}
		if d.Kind == string(models.KindHotDeal) {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDealStore) SweepExpired(_ context.Context, _ int) (int, error) {
	return m.swept, nil
}

type mockPublisher struct {
	batches [][]models.Deal
	err     error
	block   chan struct{} // when set, Publish waits until closed
}

func (m *mockPublisher) Publish(_ context.Context, deals []models.Deal) (publisher.Result, error) {
	if m.block != nil {
		<-m.block
	}
	m.batches = append(m.batches, deals)
	if m.err != nil {
		return publisher.Result{Queued: len(deals)}, m.err
	}
	return publisher.Result{Queued: len(deals), Posted: len(deals)}, nil
}

type mockValidator struct {
	rejectTitle string
}

func (m *mockValidator) ValidateCandidate(c models.DealCandidate) error {
	if m.rejectTitle != "" && c.Title == m.rejectTitle {
		return errors.New("rejected")
	}
	return nil
}

type mockFetcher struct {
	store      models.Store
	candidates []models.DealCandidate
	err        error
}

func (m *mockFetcher) Store() models.Store { return m.store }
func (m *mockFetcher) Fetch(_ context.Context) ([]models.DealCandidate, error) {
	return m.candidates, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		PostLimit:     10,
		RetentionDays: 7,
		PostCaps: map[models.Store]int{
			models.StoreSteam: 10,
			models.StoreEpic:  2,
			models.StoreGOG:   3,
			models.StorePrime: 1,
		},
	}
}

func gogCandidate(url string) models.DealCandidate {
	return models.DealCandidate{
		Store: models.StoreGOG,
		Kind:  models.KindFreeToKeep,
		Title: "Game",
		URL:   url,
	}
}

// --- Tests ---

func TestRun_IngestsAndPublishes(t *testing.T) {
	store := newMockDealStore()
	pub := &mockPublisher{}
	fetcher := &mockFetcher{store: models.StoreGOG, candidates: []models.DealCandidate{
		gogCandidate("https://www.gog.com/game/one"),
		gogCandidate("https://www.gog.com/game/two"),
	}}
	p := New(store, pub, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	res := p.Run(context.Background(), models.StoreGOG)
	if res.Err != nil {
		t.Fatalf("Expected no error, got %v", res.Err)
	}
	if res.Fetched != 2 || res.New != 2 {
		t.Errorf("Expected 2 fetched and 2 new, got %+v", res)
	}
	if res.Posted != 2 {
		t.Errorf("Expected 2 posted, got %d", res.Posted)
	}
}

func TestRun_RepeatRunIngestsNothingNew(t *testing.T) {
	store := newMockDealStore()
	fetcher := &mockFetcher{store: models.StoreGOG, candidates: []models.DealCandidate{
		gogCandidate("https://www.gog.com/game/one"),
	}}
	p := New(store, &mockPublisher{}, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	first := p.Run(context.Background(), models.StoreGOG)
	second := p.Run(context.Background(), models.StoreGOG)
	if first.New != 1 {
		t.Errorf("Expected 1 new on first run, got %d", first.New)
	}
	if second.New != 0 {
		t.Errorf("Expected 0 new on repeat run, got %d", second.New)
	}
}

func TestRun_ContendedLockSkips(t *testing.T) {
	store := newMockDealStore()
	block := make(chan struct{})
	pub := &mockPublisher{block: block}
	fetcher := &mockFetcher{store: models.StoreGOG, candidates: []models.DealCandidate{
		gogCandidate("https://www.gog.com/game/one"),
	}}
	p := New(store, pub, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	done := make(chan RunResult)
	go func() { done <- p.Run(context.Background(), models.StoreGOG) }()

	// Wait until the first run holds the lock (blocked inside Publish).
	deadline := time.After(2 * time.Second)
	for {
		if !p.mu.TryLock() {
			break
		}
		p.mu.Unlock()
		select {
		case <-deadline:
			t.Fatal("First run never acquired the lock")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second := p.Run(context.Background(), models.StoreSteam)
	if !second.Skipped {
		t.Error("Expected contended run to be skipped")
	}

	close(block)
	first := <-done
	if first.Skipped || first.Err != nil {
		t.Errorf("Expected first run to finish normally, got %+v", first)
	}
}

func TestRun_FetchErrorIsRecoverable(t *testing.T) {
	store := newMockDealStore()
	pub := &mockPublisher{}
	fetcher := &mockFetcher{store: models.StoreGOG, err: errors.New("upstream down")}
	p := New(store, pub, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	res := p.Run(context.Background(), models.StoreGOG)
	if res.Err == nil {
		t.Fatal("Expected run error recorded")
	}
	if len(pub.batches) != 0 {
		t.Error("Expected no publish attempt after failed fetch")
	}

	// The lock is released; a later run proceeds.
	fetcher.err = nil
	fetcher.candidates = []models.DealCandidate{gogCandidate("https://www.gog.com/game/one")}
	if res := p.Run(context.Background(), models.StoreGOG); res.Err != nil {
		t.Errorf("Expected recovery on next run, got %v", res.Err)
	}
}

func TestRun_InvalidCandidateDroppedNotFatal(t *testing.T) {
	store := newMockDealStore()
	fetcher := &mockFetcher{store: models.StoreGOG, candidates: []models.DealCandidate{
		{Store: models.StoreGOG, Kind: models.KindFreeToKeep, Title: "Bad", URL: "https://www.gog.com/game/bad"},
		gogCandidate("https://www.gog.com/game/good"),
	}}
	p := New(store, &mockPublisher{}, &mockValidator{rejectTitle: "Bad"}, []sources.Fetcher{fetcher}, testConfig())

	res := p.Run(context.Background(), models.StoreGOG)
	if res.Err != nil {
		t.Fatalf("Expected no error, got %v", res.Err)
	}
	if res.New != 1 {
		t.Errorf("Expected only the valid candidate stored, got %d", res.New)
	}
}

func TestRun_StorageErrorIsHardFailure(t *testing.T) {
	store := newMockDealStore()
	store.upsertErr = errors.New("disk full")
	pub := &mockPublisher{}
	fetcher := &mockFetcher{store: models.StoreGOG, candidates: []models.DealCandidate{
		gogCandidate("https://www.gog.com/game/one"),
	}}
	p := New(store, pub, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	res := p.Run(context.Background(), models.StoreGOG)
	if res.Err == nil {
		t.Fatal("Expected error from storage failure")
	}
	if len(pub.batches) != 0 {
		t.Error("Expected no publish after storage failure")
	}
}

func TestRun_PerStoreCapApplied(t *testing.T) {
	store := newMockDealStore()
	pub := &mockPublisher{}
	var candidates []models.DealCandidate
	for _, slug := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, models.DealCandidate{
			Store: models.StorePrime, Kind: models.KindFreeToKeep,
			Title: "Prime " + slug, URL: "https://primegaming.blog/article-" + slug,
		})
	}
	fetcher := &mockFetcher{store: models.StorePrime, candidates: candidates}
	p := New(store, pub, &mockValidator{}, []sources.Fetcher{fetcher}, testConfig())

	res := p.Run(context.Background(), models.StorePrime)
	if res.Err != nil {
		t.Fatalf("Expected no error, got %v", res.Err)
	}
	if res.Queued != 1 {
		t.Errorf("Expected prime cap of 1 applied, got %d queued", res.Queued)
	}
}

func TestRun_UnknownStore(t *testing.T) {
	p := New(newMockDealStore(), &mockPublisher{}, &mockValidator{}, nil, testConfig())
	res := p.Run(context.Background(), models.Store("itch"))
	if res.Err == nil {
		t.Error("Expected error for unknown store")
	}
}

func TestSweep(t *testing.T) {
	store := newMockDealStore()
	store.swept = 4
	p := New(store, &mockPublisher{}, &mockValidator{}, nil, testConfig())

	deleted, err := p.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if deleted != 4 {
		t.Errorf("Expected 4 deleted, got %d", deleted)
	}
}
