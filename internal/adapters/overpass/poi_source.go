package overpass

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/pkg/metrics"
)

// categorySelectors maps a POI category to its Overpass tag filter.
// Unknown categories fall back to matching the category as an amenity
// value directly.
var categorySelectors = map[string]string{
	"school":      `["amenity"="school"]`,
	"healthcare":  `["amenity"~"hospital|clinic|doctors|pharmacy"]`,
	"supermarket": `["shop"~"supermarket|convenience"]`,
	"restaurant":  `["amenity"~"restaurant|cafe|fast_food"]`,
	"park":        `["leisure"="park"]`,
	"station":     `["railway"="station"]`,
	"bus_stop":    `["highway"="bus_stop"]`,
	"worship":     `["amenity"="place_of_worship"]`,
}

// POISource implements ports.POISource against the Overpass API.
type POISource struct {
	client  *overpass.Client
	timeout time.Duration
}

// New builds a POISource talking to the given Overpass endpoint.
func New(endpoint string, timeout time.Duration) *POISource {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &POISource{
		client:  &client,
		timeout: timeout,
	}
}

// FetchLayer returns all POIs of the category inside the bounding box.
// Ways are reduced to their vertex centroid so every element contributes
// a single point.
func (s *POISource) FetchLayer(ctx context.Context, b domain.Bounds, category string) (*domain.POILayer, error) {
	selector, ok := categorySelectors[category]
	if !ok {
		selector = fmt.Sprintf(`["amenity"=%q]`, category)
	}
	bbox := fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	query := fmt.Sprintf(`
		[out:json];
		(
			node%s(%s);
			way%s(%s);
		);
		out body;
		>;
		out skel qt;
	`, selector, bbox, selector, bbox)

	result, err := s.executeQuery(ctx, query)
	if err != nil {
		metrics.OverpassRequests.WithLabelValues(category, "error").Inc()
		return nil, fmt.Errorf("fetch %q layer: %w", category, err)
	}
	metrics.OverpassRequests.WithLabelValues(category, "ok").Inc()

	layer := &domain.POILayer{Category: category}
	for _, node := range result.Nodes {
		if len(node.Tags) == 0 {
			// Bare vertices pulled in by way recursion, not POIs themselves.
			continue
		}
		layer.Points = append(layer.Points, domain.GeoPoint{Lat: node.Lat, Lon: node.Lon})
	}
	for _, way := range result.Ways {
		if pt, ok := wayCentroid(way); ok {
			layer.Points = append(layer.Points, pt)
		}
	}
	return layer, nil
}

// executeQuery runs one Overpass request. The client carries no context
// support, so the HTTP client timeout bounds the request; the context is
// only consulted before starting.
func (s *POISource) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.Query(query)
	metrics.OverpassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	return &result, nil
}

func wayCentroid(way *overpass.Way) (domain.GeoPoint, bool) {
	if way == nil || len(way.Nodes) == 0 {
		return domain.GeoPoint{}, false
	}
	var lat, lon float64
	for _, node := range way.Nodes {
		lat += node.Lat
		lon += node.Lon
	}
	n := float64(len(way.Nodes))
	return domain.GeoPoint{Lat: lat / n, Lon: lon / n}, true
}
