package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Metric is a real value that may be undefined, e.g. a ratio whose
// denominator summed to zero. Undefined means "no data"; it is never
// encoded as 0, NaN or Inf.
type Metric struct {
	value   float64
	defined bool
}

// Undefined is the value of a ratio whose denominator is zero.
func Undefined() Metric { return Metric{} }

// Defined wraps v; non-finite inputs become undefined.
func Defined(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{value: v, defined: true}
}

// Ratio is num/den, undefined when den is zero.
func Ratio(num, den float64) Metric {
	if den == 0 {
		return Metric{}
	}
	return Defined(num / den)
}

func (m Metric) Value() (float64, bool) { return m.value, m.defined }
func (m Metric) IsDefined() bool        { return m.defined }

// Or returns the value, or def when undefined.
func (m Metric) Or(def float64) float64 {
	if !m.defined {
		return def
	}
	return m.value
}

func (m Metric) Scale(k float64) Metric {
	if !m.defined {
		return m
	}
	return Defined(m.value * k)
}

func (m Metric) Round(places int) Metric {
	if !m.defined {
		return m
	}
	p := math.Pow10(places)
	return Defined(math.Round(m.value*p) / p)
}

func (m Metric) String() string {
	if !m.defined {
		return "undefined"
	}
	return strconv.FormatFloat(m.value, 'f', 2, 64)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *Metric) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}
