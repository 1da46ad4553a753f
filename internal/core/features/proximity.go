package features

import (
	"math"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/pkg/geospatial"
)

// ProximityFeatures holds per-point scores against one POI layer.
//
// Count is the number of POIs strictly within the radius. Distance is a
// normalized nearness score: 1 for a coincident POI, 0 at or beyond the
// radius boundary, and 0 when the layer has no POI within the radius at
// all. Keeping both features boundedly scaled lets them share a design
// matrix with the trend columns without dwarfing them.
type ProximityFeatures struct {
	Count    []float64
	Distance []float64
}

// Proximity scores every point against one POI layer. radiusDeg is given
// in degrees of latitude and converted with the fixed 111 km/degree
// constant.
func Proximity(points []domain.GeoPoint, layer domain.POILayer, radiusDeg float64) ProximityFeatures {
	radius := geospatial.DegreesToMeters(radiusDeg)

	pf := ProximityFeatures{
		Count:    make([]float64, len(points)),
		Distance: make([]float64, len(points)),
	}

	for i, p := range points {
		count := 0
		nearest := math.Inf(1)
		for _, poi := range layer.Points {
			d := geospatial.Distance(p.Lat, p.Lon, poi.Lat, poi.Lon)
			if d < radius {
				count++
				if d < nearest {
					nearest = d
				}
			}
		}
		pf.Count[i] = float64(count)
		if count > 0 {
			pf.Distance[i] = clamp01(1 - nearest/radius)
		}
	}
	return pf
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
