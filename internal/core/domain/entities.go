package domain

import (
	"time"
)

// PropertyType is the single-letter price-paid property classification.
type PropertyType string

const (
	PropertyDetached     PropertyType = "D"
	PropertySemiDetached PropertyType = "S"
	PropertyTerraced     PropertyType = "T"
	PropertyFlat         PropertyType = "F"
	PropertyOther        PropertyType = "O"
)

// PropertyTypes lists all classifications in the fixed order used for
// one-hot feature columns. The order is load-bearing: changing it changes
// the meaning of every fitted model coefficient.
var PropertyTypes = []PropertyType{
	PropertyDetached,
	PropertySemiDetached,
	PropertyTerraced,
	PropertyFlat,
	PropertyOther,
}

var propertyTypeNames = map[PropertyType]string{
	PropertyDetached:     "Detached",
	PropertySemiDetached: "Semi-detached",
	PropertyTerraced:     "Terraced",
	PropertyFlat:         "Flat/Maisonettes",
	PropertyOther:        "Others",
}

// Valid reports whether p is one of the five known classifications.
func (p PropertyType) Valid() bool {
	_, ok := propertyTypeNames[p]
	return ok
}

// DisplayName returns the human-readable name for the classification.
func (p PropertyType) DisplayName() string {
	if name, ok := propertyTypeNames[p]; ok {
		return name
	}
	return string(p)
}

// TransactionRecord is a single historical property sale joined with the
// coordinates of its postcode. Records are immutable once fetched.
type TransactionRecord struct {
	Price          int64        `json:"price"`
	DateOfTransfer time.Time    `json:"date_of_transfer"`
	Postcode       string       `json:"postcode"`
	PropertyType   PropertyType `json:"property_type"`
	NewBuildFlag   string       `json:"new_build_flag"`
	TenureType     string       `json:"tenure_type"`
	Locality       string       `json:"locality,omitempty"`
	TownCity       string       `json:"town_city"`
	District       string       `json:"district"`
	County         string       `json:"county"`
	Country        string       `json:"country"`
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
}

// Extract is a materialized slice of the transaction store, persisted under
// the range it was fetched for. The range may be strictly larger than any
// particular request it later serves.
type Extract struct {
	Range   QueryRange          `json:"range"`
	Records []TransactionRecord `json:"records"`
}

// POILayer is a named point-of-interest category with the point geometries
// found inside some bounding region. Layers are built per query, not cached.
type POILayer struct {
	Category string     `json:"category"`
	Points   []GeoPoint `json:"points"`
}

// DesignMatrix is the numeric feature table fed to the regression step:
// one row per historical record plus an independently computed row for the
// query point, all in the identical column space.
type DesignMatrix struct {
	Columns  []string    `json:"columns"`
	X        [][]float64 `json:"x"`
	Y        []float64   `json:"y"`
	QueryRow []float64   `json:"query_row"`
}
