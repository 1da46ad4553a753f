package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Range keys are the canonical string identity of a QueryRange, used both
// as cache lookup keys and as persisted extract filenames. The format is a
// fixed field order joined by '#':
//
//	town_city#CAMBRIDGE#2013-01-01#2022-12-31
//	outcode#CB2#2013-01-01#2022-12-31
//	coordinate_box#52.2#0.13#0.09#2013-01-01#2022-12-31
//
// Free-text fields are percent-encoded so the delimiter can never collide
// with upstream data (area names with spaces, apostrophes or '#').
const (
	keyDelimiter  = "#"
	boxKeyPrefix  = "coordinate_box"
	outcodePrefix = "outcode"
	dateLayout    = "2006-01-02"
)

// EncodeRangeKey derives the canonical key for a query range. Stable under
// equal inputs: DecodeRangeKey(EncodeRangeKey(q)) == q.
func EncodeRangeKey(q QueryRange) string {
	start := q.DateStart.Format(dateLayout)
	end := q.DateEnd.Format(dateLayout)

	switch q.Kind {
	case RangeNamedArea:
		return strings.Join([]string{string(q.AreaType), url.PathEscape(q.AreaName), start, end}, keyDelimiter)
	case RangeOutcode:
		return strings.Join([]string{outcodePrefix, url.PathEscape(q.Outcode), start, end}, keyDelimiter)
	case RangeCoordinateBox:
		return strings.Join([]string{
			boxKeyPrefix,
			formatCoord(q.Lat),
			formatCoord(q.Lon),
			formatCoord(q.BoxSize),
			start,
			end,
		}, keyDelimiter)
	default:
		// Unknown kinds encode to the zero key, which never decodes.
		return ""
	}
}

// DecodeRangeKey reconstructs a QueryRange from a key produced by
// EncodeRangeKey. Returns ErrMalformedKey if the string does not parse
// into a recognized shape.
func DecodeRangeKey(key string) (QueryRange, error) {
	parts := strings.Split(key, keyDelimiter)
	if len(parts) < 4 {
		return QueryRange{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedKey, key, len(parts))
	}

	var q QueryRange
	switch parts[0] {
	case boxKeyPrefix:
		if len(parts) != 6 {
			return QueryRange{}, fmt.Errorf("%w: coordinate box key %q needs 6 fields", ErrMalformedKey, key)
		}
		lat, errLat := strconv.ParseFloat(parts[1], 64)
		lon, errLon := strconv.ParseFloat(parts[2], 64)
		box, errBox := strconv.ParseFloat(parts[3], 64)
		if errLat != nil || errLon != nil || errBox != nil {
			return QueryRange{}, fmt.Errorf("%w: unparseable coordinates in %q", ErrMalformedKey, key)
		}
		q = QueryRange{Kind: RangeCoordinateBox, Lat: lat, Lon: lon, BoxSize: box}
	case outcodePrefix:
		if len(parts) != 4 {
			return QueryRange{}, fmt.Errorf("%w: outcode key %q needs 4 fields", ErrMalformedKey, key)
		}
		code, err := url.PathUnescape(parts[1])
		if err != nil || code == "" {
			return QueryRange{}, fmt.Errorf("%w: bad outcode in %q", ErrMalformedKey, key)
		}
		q = QueryRange{Kind: RangeOutcode, Outcode: code}
	default:
		areaType := AreaType(parts[0])
		if !areaType.Valid() || len(parts) != 4 {
			return QueryRange{}, fmt.Errorf("%w: unrecognized shape in %q", ErrMalformedKey, key)
		}
		name, err := url.PathUnescape(parts[1])
		if err != nil || name == "" {
			return QueryRange{}, fmt.Errorf("%w: bad area name in %q", ErrMalformedKey, key)
		}
		q = QueryRange{Kind: RangeNamedArea, AreaType: areaType, AreaName: name}
	}

	start, errStart := time.ParseInLocation(dateLayout, parts[len(parts)-2], time.UTC)
	end, errEnd := time.ParseInLocation(dateLayout, parts[len(parts)-1], time.UTC)
	if errStart != nil || errEnd != nil {
		return QueryRange{}, fmt.Errorf("%w: unparseable dates in %q", ErrMalformedKey, key)
	}
	q.DateStart = start
	q.DateEnd = end
	return q, nil
}

// formatCoord renders a coordinate with the shortest representation that
// round-trips exactly through ParseFloat.
func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
