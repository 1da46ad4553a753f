package domain

import (
	"fmt"
	"time"
)

// AreaType selects which administrative column a named-area query matches.
type AreaType string

const (
	AreaTownCity AreaType = "town_city"
	AreaDistrict AreaType = "district"
	AreaCounty   AreaType = "county"
)

// Valid reports whether t is a known area type.
func (t AreaType) Valid() bool {
	switch t {
	case AreaTownCity, AreaDistrict, AreaCounty:
		return true
	}
	return false
}

// RangeKind tags the shape of a QueryRange.
type RangeKind int

const (
	RangeNamedArea RangeKind = iota
	RangeOutcode
	RangeCoordinateBox
)

// CoordEpsilon absorbs rounding introduced by encoding coordinates through
// range keys when comparing box edges for containment.
const CoordEpsilon = 1e-6

// QueryRange is a closed tagged union of the three query shapes, plus an
// inclusive date interval. Exactly one shape's fields are populated,
// selected by Kind.
type QueryRange struct {
	Kind RangeKind `json:"kind"`

	// RangeNamedArea
	AreaType AreaType `json:"area_type,omitempty"`
	AreaName string   `json:"area_name,omitempty"`

	// RangeOutcode
	Outcode string `json:"outcode,omitempty"`

	// RangeCoordinateBox
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	BoxSize float64 `json:"box_size,omitempty"`

	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
}

// NewAreaRange builds a named-area query range.
func NewAreaRange(areaType AreaType, areaName string, start, end time.Time) QueryRange {
	return QueryRange{
		Kind:      RangeNamedArea,
		AreaType:  areaType,
		AreaName:  areaName,
		DateStart: start,
		DateEnd:   end,
	}
}

// NewOutcodeRange builds an outcode query range.
func NewOutcodeRange(outcode string, start, end time.Time) QueryRange {
	return QueryRange{
		Kind:      RangeOutcode,
		Outcode:   outcode,
		DateStart: start,
		DateEnd:   end,
	}
}

// NewBoxRange builds a coordinate-box query range centred on (lat, lon)
// with sides of boxSize degrees.
func NewBoxRange(lat, lon, boxSize float64, start, end time.Time) QueryRange {
	return QueryRange{
		Kind:      RangeCoordinateBox,
		Lat:       lat,
		Lon:       lon,
		BoxSize:   boxSize,
		DateStart: start,
		DateEnd:   end,
	}
}

// Validate checks shape and date invariants.
func (q QueryRange) Validate() error {
	switch q.Kind {
	case RangeNamedArea:
		if !q.AreaType.Valid() {
			return fmt.Errorf("invalid area type %q", q.AreaType)
		}
		if q.AreaName == "" {
			return fmt.Errorf("area name must not be empty")
		}
	case RangeOutcode:
		if q.Outcode == "" {
			return fmt.Errorf("outcode must not be empty")
		}
	case RangeCoordinateBox:
		if q.BoxSize <= 0 {
			return fmt.Errorf("box size must be positive, got %g", q.BoxSize)
		}
	default:
		return fmt.Errorf("unknown range kind %d", q.Kind)
	}
	if q.DateEnd.Before(q.DateStart) {
		return fmt.Errorf("date_start %s is after date_end %s",
			q.DateStart.Format(dateLayout), q.DateEnd.Format(dateLayout))
	}
	return nil
}

// BoxBounds returns the edges of a coordinate-box range:
// [lat ± box/2, lon ± box/2].
func (q QueryRange) BoxBounds() Bounds {
	half := q.BoxSize / 2
	return Bounds{
		MinLat: q.Lat - half,
		MinLon: q.Lon - half,
		MaxLat: q.Lat + half,
		MaxLon: q.Lon + half,
	}
}

// Covers reports whether q was fetched for a shape-compatible superset of
// requested: identical shape parameters (edge-wise within CoordEpsilon for
// coordinate boxes) and a containing date interval.
func (q QueryRange) Covers(requested QueryRange) bool {
	if q.Kind != requested.Kind {
		return false
	}

	switch q.Kind {
	case RangeNamedArea:
		if q.AreaType != requested.AreaType || q.AreaName != requested.AreaName {
			return false
		}
	case RangeOutcode:
		if q.Outcode != requested.Outcode {
			return false
		}
	case RangeCoordinateBox:
		have, want := q.BoxBounds(), requested.BoxBounds()
		if have.MinLat > want.MinLat+CoordEpsilon ||
			have.MinLon > want.MinLon+CoordEpsilon ||
			have.MaxLat < want.MaxLat-CoordEpsilon ||
			have.MaxLon < want.MaxLon-CoordEpsilon {
			return false
		}
	default:
		return false
	}

	return !q.DateStart.After(requested.DateStart) && !q.DateEnd.Before(requested.DateEnd)
}

// MatchesRecord applies the exact request predicate to a record, narrowing
// a superset extract down to precisely this range. Dates are inclusive on
// both ends; box edges are half-open [min, max), matching the store-side
// predicate so a cache hit and a direct fetch agree row for row.
func (q QueryRange) MatchesRecord(rec TransactionRecord) bool {
	if rec.DateOfTransfer.Before(q.DateStart) || rec.DateOfTransfer.After(q.DateEnd) {
		return false
	}
	if q.Kind == RangeCoordinateBox {
		b := q.BoxBounds()
		if rec.Latitude < b.MinLat || rec.Latitude >= b.MaxLat ||
			rec.Longitude < b.MinLon || rec.Longitude >= b.MaxLon {
			return false
		}
	}
	return true
}
