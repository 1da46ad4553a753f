package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Expand grows the box by margin degrees on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - margin,
		MinLon: b.MinLon - margin,
		MaxLat: b.MaxLat + margin,
		MaxLon: b.MaxLon + margin,
	}
}
