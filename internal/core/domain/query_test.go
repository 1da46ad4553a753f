package domain_test

import (
	"testing"

	"github.com/mjashworth/priceframe/internal/core/domain"
)

func TestQueryRange_CoversReflexive(t *testing.T) {
	start := date(2013, 1, 1)
	end := date(2022, 12, 31)

	ranges := []domain.QueryRange{
		domain.NewAreaRange(domain.AreaTownCity, "CAMBRIDGE", start, end),
		domain.NewOutcodeRange("CB2", start, end),
		domain.NewBoxRange(52.2, 0.13, 0.09, start, end),
	}

	for _, r := range ranges {
		if !r.Covers(r) {
			t.Errorf("range should cover itself: %+v", r)
		}
	}
}

func TestQueryRange_CoversBox(t *testing.T) {
	start := date(2010, 1, 1)
	end := date(2022, 12, 31)
	cached := domain.NewBoxRange(52.2, 0.13, 0.2, start, end)

	tests := []struct {
		name      string
		requested domain.QueryRange
		want      bool
	}{
		{
			"strictly inside with margin",
			domain.NewBoxRange(52.2, 0.13, 0.1, date(2013, 1, 1), date(2020, 12, 31)),
			true,
		},
		{
			"identical bounds within tolerance",
			domain.NewBoxRange(52.2000001, 0.13, 0.2, start, end),
			true,
		},
		{
			"edge drift inside the 1e-6 tolerance",
			domain.NewBoxRange(52.2, 0.13, 0.2+1.8e-6, start, end),
			true,
		},
		{
			"edge drift beyond the tolerance",
			domain.NewBoxRange(52.2, 0.13, 0.2+4e-6, start, end),
			false,
		},
		{
			"wider box",
			domain.NewBoxRange(52.2, 0.13, 0.3, start, end),
			false,
		},
		{
			"shifted outside east edge",
			domain.NewBoxRange(52.2, 0.25, 0.1, start, end),
			false,
		},
		{
			"dates extend past cached interval",
			domain.NewBoxRange(52.2, 0.13, 0.1, date(2009, 1, 1), date(2020, 12, 31)),
			false,
		},
	}

	for _, tt := range tests {
		if got := cached.Covers(tt.requested); got != tt.want {
			t.Errorf("%s: Covers = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestQueryRange_CoversShapeMismatch(t *testing.T) {
	start := date(2013, 1, 1)
	end := date(2022, 12, 31)

	area := domain.NewAreaRange(domain.AreaTownCity, "CAMBRIDGE", start, end)
	district := domain.NewAreaRange(domain.AreaDistrict, "CAMBRIDGE", start, end)
	outcode := domain.NewOutcodeRange("CB2", start, end)
	box := domain.NewBoxRange(52.2, 0.13, 10, start, end)

	if area.Covers(district) || district.Covers(area) {
		t.Error("area types must match exactly")
	}
	if box.Covers(outcode) || box.Covers(area) {
		t.Error("coordinate boxes never cover other shapes, however large")
	}
	if outcode.Covers(domain.NewOutcodeRange("CB3", start, end)) {
		t.Error("different outcodes must not match")
	}
}

func TestQueryRange_MatchesRecord(t *testing.T) {
	q := domain.NewBoxRange(52.2, 0.13, 0.1, date(2015, 1, 1), date(2016, 12, 31))

	in := domain.TransactionRecord{
		DateOfTransfer: date(2015, 6, 1),
		Latitude:       52.21,
		Longitude:      0.12,
	}
	if !q.MatchesRecord(in) {
		t.Error("record inside box and dates should match")
	}

	outside := []domain.TransactionRecord{
		{DateOfTransfer: date(2014, 12, 31), Latitude: 52.21, Longitude: 0.12},
		{DateOfTransfer: date(2017, 1, 1), Latitude: 52.21, Longitude: 0.12},
		{DateOfTransfer: date(2015, 6, 1), Latitude: 52.26, Longitude: 0.12},
		// max edge is half-open
		{DateOfTransfer: date(2015, 6, 1), Latitude: 52.25, Longitude: 0.12},
		{DateOfTransfer: date(2015, 6, 1), Latitude: 52.21, Longitude: 0.19},
	}
	for i, rec := range outside {
		if q.MatchesRecord(rec) {
			t.Errorf("record %d should not match: %+v", i, rec)
		}
	}
}

func TestQueryRange_Validate(t *testing.T) {
	good := domain.NewOutcodeRange("CB2", date(2013, 1, 1), date(2013, 1, 1))
	if err := good.Validate(); err != nil {
		t.Errorf("equal start/end dates are valid: %v", err)
	}

	bad := []domain.QueryRange{
		domain.NewAreaRange("region", "CAMBRIDGE", date(2013, 1, 1), date(2014, 1, 1)),
		domain.NewAreaRange(domain.AreaTownCity, "", date(2013, 1, 1), date(2014, 1, 1)),
		domain.NewOutcodeRange("", date(2013, 1, 1), date(2014, 1, 1)),
		domain.NewBoxRange(52.2, 0.13, 0, date(2013, 1, 1), date(2014, 1, 1)),
		domain.NewOutcodeRange("CB2", date(2014, 1, 1), date(2013, 1, 1)),
	}
	for i, q := range bad {
		if err := q.Validate(); err == nil {
			t.Errorf("range %d should fail validation: %+v", i, q)
		}
	}
}

func TestPropertyType(t *testing.T) {
	if !domain.PropertyFlat.Valid() {
		t.Error("F is a valid property type")
	}
	if domain.PropertyType("X").Valid() {
		t.Error("X is not a valid property type")
	}
	if got := domain.PropertyFlat.DisplayName(); got != "Flat/Maisonettes" {
		t.Errorf("display name: got %q", got)
	}
	if len(domain.PropertyTypes) != 5 {
		t.Errorf("expected 5 property types, got %d", len(domain.PropertyTypes))
	}
}
