// Package features holds the pure feature builders: polynomial time trends
// factored by property type, and POI proximity scores. Both are leaf
// components with no I/O.
package features

import (
	"time"

	"github.com/mjashworth/priceframe/internal/core/domain"
)

// TrendDegree is the highest power of normalized time in the trend blocks.
const TrendDegree = 3

// DayZero anchors date normalization: the first day covered by the
// price-paid dataset.
var DayZero = time.Date(1995, time.January, 1, 0, 0, 0, 0, time.UTC)

// NormalizeDate maps a transaction date to a continuous year offset from
// DayZero: (date − 1995-01-01).days / 365.
func NormalizeDate(d time.Time) float64 {
	return d.Sub(DayZero).Hours() / 24 / 365
}

// OneHot returns the property-type indicator vector in the fixed
// domain.PropertyTypes column order. Unknown types yield all zeros.
func OneHot(p domain.PropertyType) []float64 {
	hot := make([]float64, len(domain.PropertyTypes))
	for i, pt := range domain.PropertyTypes {
		if pt == p {
			hot[i] = 1
		}
	}
	return hot
}

// TrendRow expands one record into its categorical and temporal feature
// columns: the one-hot block followed by the one-hot multiplied elementwise
// by t, t² and t³, where t = NormalizeDate(date). All blocks are zero
// except in the column matching the record's type.
func TrendRow(p domain.PropertyType, date time.Time) []float64 {
	hot := OneHot(p)
	t := NormalizeDate(date)

	row := make([]float64, 0, len(hot)*(TrendDegree+1))
	row = append(row, hot...)
	power := 1.0
	for d := 1; d <= TrendDegree; d++ {
		power *= t
		for _, h := range hot {
			row = append(row, h*power)
		}
	}
	return row
}

// TrendColumns names the columns produced by TrendRow, in order.
func TrendColumns() []string {
	cols := make([]string, 0, len(domain.PropertyTypes)*(TrendDegree+1))
	for _, pt := range domain.PropertyTypes {
		cols = append(cols, "type_"+string(pt))
	}
	for d := 1; d <= TrendDegree; d++ {
		for _, pt := range domain.PropertyTypes {
			cols = append(cols, "type_"+string(pt)+"_t"+string(rune('0'+d)))
		}
	}
	return cols
}
