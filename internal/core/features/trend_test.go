package features_test

import (
	"math"
	"testing"
	"time"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/features"
)

func TestNormalizeDate(t *testing.T) {
	if got := features.NormalizeDate(features.DayZero); got != 0 {
		t.Errorf("day zero should normalize to 0, got %g", got)
	}

	oneYear := features.DayZero.AddDate(0, 0, 365)
	if got := features.NormalizeDate(oneYear); math.Abs(got-1) > 1e-9 {
		t.Errorf("365 days should normalize to 1, got %g", got)
	}

	// Continuous offset, not a calendar year integer.
	halfway := features.DayZero.AddDate(0, 0, 182)
	got := features.NormalizeDate(halfway)
	if got <= 0.49 || got >= 0.51 {
		t.Errorf("182 days should be close to half a year, got %g", got)
	}
}

func TestOneHot(t *testing.T) {
	hot := features.OneHot(domain.PropertyTerraced)
	want := []float64{0, 0, 1, 0, 0}
	for i := range want {
		if hot[i] != want[i] {
			t.Fatalf("one-hot for T: got %v, want %v", hot, want)
		}
	}

	for _, v := range features.OneHot(domain.PropertyType("X")) {
		if v != 0 {
			t.Fatal("unknown type must map to the zero vector")
		}
	}
}

func TestTrendRow(t *testing.T) {
	d := time.Date(1996, time.January, 1, 0, 0, 0, 0, time.UTC)
	tNorm := features.NormalizeDate(d)

	row := features.TrendRow(domain.PropertyDetached, d)
	if len(row) != 20 {
		t.Fatalf("trend row should have 20 columns, got %d", len(row))
	}

	// Detached is column 0 of each block.
	if row[0] != 1 {
		t.Errorf("one-hot block: got %g, want 1", row[0])
	}
	if math.Abs(row[5]-tNorm) > 1e-12 {
		t.Errorf("degree-1 block: got %g, want %g", row[5], tNorm)
	}
	if math.Abs(row[10]-tNorm*tNorm) > 1e-12 {
		t.Errorf("degree-2 block: got %g, want %g", row[10], tNorm*tNorm)
	}
	if math.Abs(row[15]-tNorm*tNorm*tNorm) > 1e-12 {
		t.Errorf("degree-3 block: got %g, want %g", row[15], tNorm*tNorm*tNorm)
	}

	// All other columns stay zero.
	for i, v := range row {
		if i%5 != 0 && v != 0 {
			t.Errorf("column %d should be zero, got %g", i, v)
		}
	}
}

func TestTrendColumns(t *testing.T) {
	cols := features.TrendColumns()
	if len(cols) != 20 {
		t.Fatalf("expected 20 trend columns, got %d", len(cols))
	}
	if cols[0] != "type_D" || cols[5] != "type_D_t1" || cols[19] != "type_O_t3" {
		t.Errorf("unexpected column names: %v", cols)
	}
}
