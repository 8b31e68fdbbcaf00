package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// Fetcher normalizes one upstream into deal candidates. A failed fetch
// returns an error; the ingestion job records it as a recoverable event
// and continues with an empty result — it never aborts the run.
type Fetcher interface {
	Store() models.Store
	Fetch(ctx context.Context) ([]models.DealCandidate, error)
}

// ResolutionSummary counts the outcomes of per-item canonical-URL and
// image resolutions within one fetch, so degraded items are reported
// instead of silently swallowed. Recorded from concurrent fetch paths;
// the counters may only be read after those paths have joined.
type ResolutionSummary struct {
	mu        sync.Mutex
	Attempted int
	Resolved  int
	Degraded  int
}

func (s *ResolutionSummary) record(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempted++
	if ok {
		s.Resolved++
	} else {
		s.Degraded++
	}
}

// sniffList extracts the deal list from an aggregator response that may
// be either an array at the root or an object wrapping the list under
// one of several known keys. The fallback order is fixed and tested.
func sniffList(data []byte) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("response is neither array nor object: %w", err)
	}
	for _, key := range []string{"list", "data", "items", "result"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &arr); err == nil {
			return arr, nil
		}
	}
	return nil, fmt.Errorf("no recognizable deal list in response")
}
