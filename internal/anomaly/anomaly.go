// Package anomaly flags days whose value sits far from the series mean.
//
// The baseline (mean and population standard deviation) is computed once per
// call over the whole series; it is not refitted as days are scanned. A
// constant series has no variance and therefore no anomalies.
package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/timeseries"
)

const DefaultThreshold = 2.0

// DefaultMetrics are the daily metrics scanned when none are configured.
var DefaultMetrics = []string{
	timeseries.MetricImpressions,
	timeseries.MetricClicks,
	timeseries.MetricRevenue,
	models.KPICTR,
	models.KPIROAS,
}

// Stats is the baseline of one series.
type Stats struct {
	N    int
	Mean float64
	Std  float64
}

// Baseline computes mean and population std over the defined values.
func Baseline(values []models.Metric) Stats {
	var s Stats
	sum := 0.0
	for _, m := range values {
		if v, ok := m.Value(); ok {
			sum += v
			s.N++
		}
	}
	if s.N == 0 {
		return s
	}
	s.Mean = sum / float64(s.N)
	ss := 0.0
	for _, m := range values {
		if v, ok := m.Value(); ok {
			ss += (v - s.Mean) * (v - s.Mean)
		}
	}
	s.Std = math.Sqrt(ss / float64(s.N))
	return s
}

// ZScore is |v - mean| / std; ok is false when std is zero.
func (s Stats) ZScore(v float64) (float64, bool) {
	if s.Std == 0 {
		return 0, false
	}
	return math.Abs(v-s.Mean) / s.Std, true
}

// Detect flags every day whose z-score reaches threshold. The comparison is
// inclusive: with population std, [10,10,10,10,100] puts 100 at exactly
// z=2, and that day is flagged at threshold 2. dates and values are
// parallel; undefined values are skipped.
func Detect(dates []time.Time, values []models.Metric, metric string, threshold float64) []models.AnomalyFlag {
	st := Baseline(values)
	if st.Std == 0 {
		return nil
	}
	var out []models.AnomalyFlag
	for i, m := range values {
		v, ok := m.Value()
		if !ok {
			continue
		}
		z, _ := st.ZScore(v)
		if z >= threshold {
			out = append(out, models.AnomalyFlag{
				Date:   dates[i],
				Metric: metric,
				Value:  v,
				ZScore: z,
				Mean:   st.Mean,
				Std:    st.Std,
				Lower:  st.Mean - threshold*st.Std,
				Upper:  st.Mean + threshold*st.Std,
			})
		}
	}
	return out
}

// DetectDaily scans several metrics of a daily series. Flags are grouped
// by metric in the order given, and by date within a metric.
func DetectDaily(points []models.DailyPoint, metrics []string, threshold float64) ([]models.AnomalyFlag, error) {
	if len(points) == 0 {
		return nil, models.ErrEmptyBatch
	}
	dates := make([]time.Time, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	var out []models.AnomalyFlag
	for _, name := range metrics {
		vals, err := timeseries.Series(points, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Detect(dates, vals, name, threshold)...)
	}
	return out, nil
}

// Strongest returns flags ordered by z-score, largest first.
func Strongest(flags []models.AnomalyFlag) []models.AnomalyFlag {
	out := append([]models.AnomalyFlag(nil), flags...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	return out
}
