package cleaning

import (
	"math"
	"sort"
)

// Bounds are the Tukey fences of a column.
type Bounds struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Quantile returns the p-quantile of vals using linear interpolation between
// closest ranks (the NumPy/pandas default). vals must be non-empty.
func Quantile(vals []float64, p float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	return quantileSorted(s, p)
}

func quantileSorted(s []float64, p float64) float64 {
	pos := p * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (pos-float64(lo))*(s[hi]-s[lo])
}

func Median(vals []float64) float64 { return Quantile(vals, 0.5) }

// IQRBounds computes Q1 − 1.5·IQR and Q3 + 1.5·IQR. It reports false for an
// empty column.
func IQRBounds(vals []float64) (Bounds, bool) {
	if len(vals) == 0 {
		return Bounds{}, false
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	q1 := quantileSorted(s, 0.25)
	q3 := quantileSorted(s, 0.75)
	iqr := q3 - q1
	return Bounds{Q1: q1, Q3: q3, Lower: q1 - 1.5*iqr, Upper: q3 + 1.5*iqr}, true
}
