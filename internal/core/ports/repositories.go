package ports

import (
	"context"

	"github.com/mjashworth/priceframe/internal/core/domain"
)

// TransactionStore is the external transactional store collaborator: a join
// of the price-paid and postcode-location tables, filtered server-side by
// the exact range predicate.
type TransactionStore interface {
	FetchRange(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error)
}

// ExtractStore persists materialized extracts, named by their range key.
type ExtractStore interface {
	// Ranges returns the decoded ranges of every persisted extract.
	// Entries with unparseable names are skipped, not reported as errors.
	// No ordering is guaranteed.
	Ranges(ctx context.Context) ([]domain.QueryRange, error)

	// Load reads the extract persisted for exactly the given range.
	Load(ctx context.Context, r domain.QueryRange) (*domain.Extract, error)

	// Save persists records under the given range. Extracts are never
	// merged; saving an overlapping range creates a separate file.
	Save(ctx context.Context, r domain.QueryRange, records []domain.TransactionRecord) error
}

// POISource retrieves point-of-interest geometries for a category within a
// bounding box.
type POISource interface {
	FetchLayer(ctx context.Context, b domain.Bounds, category string) (*domain.POILayer, error)
}
