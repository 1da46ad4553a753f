package postgres

import (
	"context"
	"fmt"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/pkg/metrics"
)

// TransactionRepo implements ports.TransactionStore against the price-paid
// tables, joining transactions with postcode coordinates.
type TransactionRepo struct {
	db *DB
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const selectColumns = `
	SELECT pp.price, pp.date_of_transfer, pp.postcode, pp.property_type,
	       pp.new_build_flag, pp.tenure_type,
	       COALESCE(pp.locality, ''), pp.town_city, pp.district, pp.county,
	       pc.country, pc.latitude, pc.longitude
	FROM pp_data pp
	JOIN postcode_data pc ON pc.postcode = pp.postcode`

// FetchRange returns every transaction matching the range predicate. Box
// edges are half-open [min, max) on both axes; dates are inclusive.
func (r *TransactionRepo) FetchRange(ctx context.Context, q domain.QueryRange) ([]domain.TransactionRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args, err := buildRangeQuery(q)
	if err != nil {
		metrics.StoreFetches.WithLabelValues(shapeLabel(q.Kind), "error").Inc()
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		metrics.StoreFetches.WithLabelValues(shapeLabel(q.Kind), "error").Inc()
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.Price, &rec.DateOfTransfer, &rec.Postcode, &rec.PropertyType,
			&rec.NewBuildFlag, &rec.TenureType,
			&rec.Locality, &rec.TownCity, &rec.District, &rec.County,
			&rec.Country, &rec.Latitude, &rec.Longitude,
		); err != nil {
			metrics.StoreFetches.WithLabelValues(shapeLabel(q.Kind), "error").Inc()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreFetches.WithLabelValues(shapeLabel(q.Kind), "error").Inc()
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	metrics.StoreFetches.WithLabelValues(shapeLabel(q.Kind), "ok").Inc()
	return records, nil
}

func buildRangeQuery(q domain.QueryRange) (string, []any, error) {
	switch q.Kind {
	case domain.RangeNamedArea:
		col, err := areaColumn(q.AreaType)
		if err != nil {
			return "", nil, err
		}
		return selectColumns + `
			WHERE pp.` + col + ` = $1
			  AND pp.date_of_transfer BETWEEN $2 AND $3`,
			[]any{q.AreaName, q.DateStart, q.DateEnd}, nil

	case domain.RangeOutcode:
		return selectColumns + `
			WHERE pp.postcode LIKE $1
			  AND pp.date_of_transfer BETWEEN $2 AND $3`,
			[]any{q.Outcode + " %", q.DateStart, q.DateEnd}, nil

	case domain.RangeCoordinateBox:
		b := q.BoxBounds()
		return selectColumns + `
			WHERE pc.latitude >= $1 AND pc.latitude < $2
			  AND pc.longitude >= $3 AND pc.longitude < $4
			  AND pp.date_of_transfer BETWEEN $5 AND $6`,
			[]any{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon, q.DateStart, q.DateEnd}, nil
	}
	return "", nil, fmt.Errorf("unknown range kind %d", q.Kind)
}

// areaColumn maps an area type to its column. The closed switch keeps the
// column name out of reach of request input.
func areaColumn(t domain.AreaType) (string, error) {
	switch t {
	case domain.AreaTownCity:
		return "town_city", nil
	case domain.AreaDistrict:
		return "district", nil
	case domain.AreaCounty:
		return "county", nil
	}
	return "", fmt.Errorf("invalid area type %q", t)
}

func shapeLabel(k domain.RangeKind) string {
	switch k {
	case domain.RangeNamedArea:
		return "named_area"
	case domain.RangeOutcode:
		return "outcode"
	case domain.RangeCoordinateBox:
		return "coordinate_box"
	}
	return "unknown"
}
