package features_test

import (
	"math"
	"testing"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/features"
)

func TestProximity_NoPOIWithinRadius(t *testing.T) {
	points := []domain.GeoPoint{{Lat: 52.2, Lon: 0.13}}
	layer := domain.POILayer{
		Category: "school",
		// Roughly 11 km north, far beyond a 0.01 degree radius.
		Points: []domain.GeoPoint{{Lat: 52.3, Lon: 0.13}},
	}

	pf := features.Proximity(points, layer, 0.01)
	if pf.Count[0] != 0 {
		t.Errorf("count: got %g, want 0", pf.Count[0])
	}
	if pf.Distance[0] != 0 {
		t.Errorf("distance feature: got %g, want 0 when nothing is in range", pf.Distance[0])
	}
}

func TestProximity_CoincidentPOI(t *testing.T) {
	points := []domain.GeoPoint{{Lat: 52.2, Lon: 0.13}}
	layer := domain.POILayer{
		Category: "school",
		Points:   []domain.GeoPoint{{Lat: 52.2, Lon: 0.13}},
	}

	pf := features.Proximity(points, layer, 0.01)
	if pf.Count[0] != 1 {
		t.Errorf("count: got %g, want 1", pf.Count[0])
	}
	if pf.Distance[0] != 1 {
		t.Errorf("distance feature: got %g, want 1 for a coincident POI", pf.Distance[0])
	}
}

func TestProximity_ApproachesOneNearZeroDistance(t *testing.T) {
	layer := domain.POILayer{
		Category: "station",
		Points:   []domain.GeoPoint{{Lat: 52.2, Lon: 0.13}},
	}

	near := features.Proximity([]domain.GeoPoint{{Lat: 52.20001, Lon: 0.13}}, layer, 0.01)
	far := features.Proximity([]domain.GeoPoint{{Lat: 52.208, Lon: 0.13}}, layer, 0.01)

	if near.Distance[0] <= 0.99 {
		t.Errorf("POI ~1m away should score near 1, got %g", near.Distance[0])
	}
	if far.Distance[0] >= near.Distance[0] {
		t.Errorf("closer POI must score higher: near=%g far=%g", near.Distance[0], far.Distance[0])
	}
	if far.Distance[0] < 0 || far.Distance[0] > 1 {
		t.Errorf("distance feature out of [0,1]: %g", far.Distance[0])
	}
}

func TestProximity_CountStrictlyWithin(t *testing.T) {
	points := []domain.GeoPoint{{Lat: 52.2, Lon: 0.13}}
	layer := domain.POILayer{
		Category: "park",
		Points: []domain.GeoPoint{
			{Lat: 52.2005, Lon: 0.13}, // ~56 m, inside a 0.01 degree radius
			{Lat: 52.205, Lon: 0.13},  // ~556 m, inside
			{Lat: 52.22, Lon: 0.13},   // ~2.2 km, outside
		},
	}

	pf := features.Proximity(points, layer, 0.01)
	if pf.Count[0] != 2 {
		t.Errorf("count: got %g, want 2", pf.Count[0])
	}

	// Nearest is ~56 m of an 1110 m radius, so the score sits near 0.95.
	if math.Abs(pf.Distance[0]-0.95) > 0.01 {
		t.Errorf("distance feature: got %g, want ~0.95", pf.Distance[0])
	}
}
