package models

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRecord is a row as delivered by the producer, keyed by column name.
// An absent key and a missing-value token are equivalent.
type RawRecord map[string]string

// RawBatch is an unvalidated batch plus the columns the producer declared.
type RawBatch struct {
	Columns []string
	Records []RawRecord
}

// NewRawBatch declares the full schema for records built in code.
func NewRawBatch(records ...RawRecord) RawBatch {
	return RawBatch{Columns: append([]string(nil), Columns...), Records: records}
}

func (b RawBatch) Len() int { return len(b.Records) }

var missingTokens = map[string]struct{}{
	"": {}, "nan": {}, "null": {}, "na": {}, "n/a": {}, "none": {}, "<na>": {}, "nat": {},
}

// IsMissing reports whether a cell carries no value.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Get returns the trimmed cell and whether it holds a value.
func (r RawRecord) Get(field string) (string, bool) {
	v, ok := r[field]
	if !ok || IsMissing(v) {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Key concatenates every schema cell; equal keys mean duplicate rows.
func (r RawRecord) Key() string {
	var sb strings.Builder
	for i, c := range Columns {
		if i > 0 {
			sb.WriteByte('\x1f')
		}
		v, _ := r.Get(c)
		sb.WriteString(v)
	}
	return sb.String()
}

var errNotFinite = errors.New("not a finite number")

var dateLayouts = []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// ParseDate accepts a calendar day or a timestamp and truncates to the UTC day.
func ParseDate(s string) (time.Time, error) {
	var err error
	for _, l := range dateLayouts {
		var t time.Time
		t, err = time.Parse(l, s)
		if err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, err
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCount accepts integers and integral floats ("12.0"), which is how
// columns with gaps are often written out.
func ParseCount(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, errNotFinite
	}
	return int64(f), nil
}

// ParseAmount parses a finite real.
func ParseAmount(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}
