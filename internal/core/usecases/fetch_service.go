package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/ports"
)

// FetchService answers range queries over the transaction history, reusing
// persisted extracts whenever one covers the requested range.
type FetchService struct {
	store    ports.TransactionStore
	extracts ports.ExtractStore
}

// NewFetchService creates a new FetchService.
func NewFetchService(store ports.TransactionStore, extracts ports.ExtractStore) *FetchService {
	return &FetchService{store: store, extracts: extracts}
}

// Fetch returns all transactions in the requested range. The boolean
// reports whether a cached superset extract served the request (and was
// therefore narrowed by a local filter); a fresh external fetch is already
// exact and needs no narrowing.
//
// On a cache miss the freshly fetched rows are persisted keyed by the
// requested range itself, never a larger one.
func (s *FetchService) Fetch(ctx context.Context, requested domain.QueryRange) ([]domain.TransactionRecord, bool, error) {
	if err := requested.Validate(); err != nil {
		return nil, false, err
	}

	covering, found, err := s.findCovering(ctx, requested)
	if err != nil {
		return nil, false, err
	}

	if found {
		extract, err := s.extracts.Load(ctx, covering)
		if err != nil {
			return nil, false, fmt.Errorf("load cached extract: %w", err)
		}
		rows := make([]domain.TransactionRecord, 0, len(extract.Records))
		for _, rec := range extract.Records {
			if requested.MatchesRecord(rec) {
				rows = append(rows, rec)
			}
		}
		return rows, true, nil
	}

	// Cache miss is the expected path, not an error.
	rows, err := s.store.FetchRange(ctx, requested)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	if err := s.extracts.Save(ctx, requested, rows); err != nil {
		// The rows themselves are good; a failed cache write only costs a
		// refetch next time.
		slog.Warn("persisting extract failed",
			"key", domain.EncodeRangeKey(requested), "error", err)
	}

	return rows, false, nil
}

// findCovering scans the persisted extract ranges for one whose range is a
// superset of the request. Scan order is whatever the store yields; when
// several extracts qualify, any of them is acceptable.
func (s *FetchService) findCovering(ctx context.Context, requested domain.QueryRange) (domain.QueryRange, bool, error) {
	candidates, err := s.extracts.Ranges(ctx)
	if err != nil {
		return domain.QueryRange{}, false, fmt.Errorf("scan extracts: %w", err)
	}
	for _, cand := range candidates {
		if cand.Covers(requested) {
			return cand, true, nil
		}
	}
	return domain.QueryRange{}, false, nil
}
