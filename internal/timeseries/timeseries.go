// Package timeseries builds the daily series of a batch and smooths it.
package timeseries

import (
	"fmt"
	"sort"
	"time"

	"github.com/AngelCh415/adperf/internal/metrics"
	"github.com/AngelCh415/adperf/internal/models"
)

// DefaultWindow is the trailing moving-average window in periods.
const DefaultWindow = 7

// Raw metric names that can be read off a daily point, besides the KPIs.
const (
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
	MetricConversions = "conversions"
	MetricCost        = "cost"
	MetricRevenue     = "revenue"
)

// UnknownMetricError is returned for a metric name that is neither a raw
// total nor a KPI.
type UnknownMetricError struct{ Name string }

func (e *UnknownMetricError) Error() string { return fmt.Sprintf("unknown metric %q", e.Name) }

// Daily sums b per calendar date, oldest first. Dates without records are
// absent from the series.
func Daily(b models.Batch) ([]models.DailyPoint, error) {
	if len(b) == 0 {
		return nil, models.ErrEmptyBatch
	}
	byDate := map[time.Time]*models.Totals{}
	for _, r := range b {
		d := models.Day(r.Date)
		t, ok := byDate[d]
		if !ok {
			t = &models.Totals{}
			byDate[d] = t
		}
		t.Add(r)
	}
	out := make([]models.DailyPoint, 0, len(byDate))
	for d, t := range byDate {
		out = append(out, models.DailyPoint{Date: d, Totals: *t, KPIs: metrics.Compute(*t)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Value reads a named metric from a daily point.
func Value(p models.DailyPoint, name string) (models.Metric, error) {
	switch name {
	case MetricImpressions:
		return models.Defined(float64(p.Totals.Impressions)), nil
	case MetricClicks:
		return models.Defined(float64(p.Totals.Clicks)), nil
	case MetricConversions:
		return models.Defined(float64(p.Totals.Conversions)), nil
	case MetricCost:
		return models.Defined(p.Totals.CostFloat()), nil
	case MetricRevenue:
		return models.Defined(p.Totals.RevenueFloat()), nil
	}
	if m, ok := p.KPIs.Get(name); ok {
		return m, nil
	}
	return models.Metric{}, &UnknownMetricError{Name: name}
}

// Series extracts one metric across the points.
func Series(points []models.DailyPoint, name string) ([]models.Metric, error) {
	out := make([]models.Metric, len(points))
	for i, p := range points {
		m, err := Value(p, name)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// MovingAverage is the trailing mean over window periods. The first
// window-1 positions are undefined, as is any window holding an undefined
// value. A window below 1 yields an all-undefined series.
func MovingAverage(values []models.Metric, window int) []models.Metric {
	out := make([]models.Metric, len(values))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, m := range values[i-window+1 : i+1] {
			v, defined := m.Value()
			if !defined {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = models.Defined(sum / float64(window))
		}
	}
	return out
}

// Point pairs a date with a smoothed value for the API.
type Point struct {
	Date  time.Time     `json:"date"`
	Value models.Metric `json:"value"`
	MA    models.Metric `json:"moving_average"`
}

// Smooth returns the named metric and its moving average per day.
func Smooth(points []models.DailyPoint, name string, window int) ([]Point, error) {
	vals, err := Series(points, name)
	if err != nil {
		return nil, err
	}
	ma := MovingAverage(vals, window)
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Date: p.Date, Value: vals[i], MA: ma[i]}
	}
	return out, nil
}
