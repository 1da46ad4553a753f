package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/features"
	"github.com/mjashworth/priceframe/internal/core/ports"
)

// FeatureRequest describes a query point for which a design matrix is
// assembled. BoxSize and Radius are in degrees of latitude.
type FeatureRequest struct {
	Lat          float64
	Lon          float64
	Date         time.Time
	PropertyType domain.PropertyType
	BoxSize      float64
	Radius       float64
	Categories   []string
}

// FeatureService assembles design matrices from historical transactions
// and point-of-interest layers.
type FeatureService struct {
	fetcher *FetchService
	pois    ports.POISource
}

// NewFeatureService creates a new FeatureService.
func NewFeatureService(fetcher *FetchService, pois ports.POISource) *FeatureService {
	return &FeatureService{fetcher: fetcher, pois: pois}
}

// Build fetches every transaction inside a box of side BoxSize centred on
// the query point, across the full available date history, and expands
// each into trend and proximity features. The query point itself is
// carried through the proximity computation as an extra point so its row
// shares the exact column space, then emitted separately as QueryRow.
func (s *FeatureService) Build(ctx context.Context, req FeatureRequest) (*domain.DesignMatrix, error) {
	if !req.PropertyType.Valid() {
		return nil, fmt.Errorf("invalid property type %q", req.PropertyType)
	}
	if req.Radius <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %g", req.Radius)
	}

	// All history contributes training rows, not just dates near the query.
	historyEnd := time.Date(time.Now().UTC().Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	r := domain.NewBoxRange(req.Lat, req.Lon, req.BoxSize, features.DayZero, historyEnd)

	rows, _, err := s.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: box %g around (%g, %g)",
			domain.ErrEmptyQueryRegion, req.BoxSize, req.Lat, req.Lon)
	}

	// Index n is the synthetic query point, appended so proximity features
	// stay index-aligned with the record rows.
	n := len(rows)
	points := make([]domain.GeoPoint, n+1)
	for i, rec := range rows {
		points[i] = domain.GeoPoint{Lat: rec.Latitude, Lon: rec.Longitude}
	}
	points[n] = domain.GeoPoint{Lat: req.Lat, Lon: req.Lon}

	// POIs just outside the box can still fall inside a point's radius.
	region := r.BoxBounds().Expand(req.Radius)
	layers := make([]features.ProximityFeatures, len(req.Categories))
	for i, category := range req.Categories {
		layer, err := s.pois.FetchLayer(ctx, region, category)
		if err != nil {
			return nil, fmt.Errorf("%w: poi layer %q: %v", domain.ErrExternalFetch, category, err)
		}
		layers[i] = features.Proximity(points, *layer, req.Radius)
	}

	columns := features.TrendColumns()
	for _, category := range req.Categories {
		columns = append(columns, "count_"+category)
	}
	for _, category := range req.Categories {
		columns = append(columns, "dist_"+category)
	}

	buildRow := func(idx int, pt domain.PropertyType, d time.Time) []float64 {
		row := features.TrendRow(pt, d)
		for _, pf := range layers {
			row = append(row, pf.Count[idx])
		}
		for _, pf := range layers {
			row = append(row, pf.Distance[idx])
		}
		return row
	}

	dm := &domain.DesignMatrix{
		Columns: columns,
		X:       make([][]float64, n),
		Y:       make([]float64, n),
	}
	for i, rec := range rows {
		dm.X[i] = buildRow(i, rec.PropertyType, rec.DateOfTransfer)
		dm.Y[i] = float64(rec.Price)
	}
	dm.QueryRow = buildRow(n, req.PropertyType, req.Date)

	return dm, nil
}
