package hierarchy

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Measures are boundary length and area in the geometry's own CRS units,
// truncated to integers, with the km values derived assuming metres.
type Measures struct {
	LenCRS  int64 `json:"len_crs"`
	AreaCRS int64 `json:"area_crs"`
	LenKm   int64 `json:"len_km"`
	AreaKm2 int64 `json:"area_km2"`
}

// Measure computes the measures of g. A nil geometry measures zero.
func Measure(g orb.Geometry) Measures {
	if g == nil {
		return Measures{}
	}
	length := int64(planar.Length(g))
	area := int64(math.Abs(planar.Area(g)))
	return Measures{
		LenCRS:  length,
		AreaCRS: area,
		LenKm:   length / 1000,
		AreaKm2: area / 1_000_000,
	}
}
