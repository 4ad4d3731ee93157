// Package insights turns computed KPIs, segment tables and anomaly flags
// into short findings. It never looks at records; every statement is
// derived from values other stages already produced.
package insights

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/adperf/internal/anomaly"
	"github.com/AngelCh415/adperf/internal/metrics"
	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/timeseries"
)

const (
	breakEvenROAS = 1.0
	highROAS      = 1.5
	highCPCFactor = 1.5
	deviceSpread  = 1.5
	topLocations  = 3
)

type Input struct {
	Overall   metrics.Summary
	Segments  metrics.Segments
	Trend     *timeseries.TrendSummary
	Anomalies []models.AnomalyFlag
}

// Performer is the best or worst segment of a dimension.
type Performer struct {
	Dimension models.Dimension `json:"dimension"`
	Key       string           `json:"key"`
	Label     string           `json:"label"`
	ROAS      float64          `json:"roas"`
}

// Insights groups the findings by kind.
type Insights struct {
	Best            []Performer `json:"best"`
	Worst           []Performer `json:"worst"`
	TopPerformers   []string    `json:"top_performers"`
	Opportunities   []string    `json:"optimization_opportunities"`
	Anomalies       []string    `json:"anomalies"`
	Trends          []string    `json:"trends"`
	Recommendations []string    `json:"recommendations"`
}

// Findings is the ranked flat list: top performers, opportunities,
// anomalies, trends, recommendations.
func (in Insights) Findings() []string {
	var out []string
	for _, group := range [][]string{in.TopPerformers, in.Opportunities, in.Anomalies, in.Trends, in.Recommendations} {
		out = append(out, group...)
	}
	return out
}

// Best returns the row with the highest defined ROAS. Ties keep the first
// row; rows with undefined ROAS are ignored.
func Best(rows []models.SegmentAggregate) (models.SegmentAggregate, bool) {
	return pick(rows, func(a, b float64) bool { return a > b })
}

// Worst returns the row with the lowest defined ROAS, first on ties.
func Worst(rows []models.SegmentAggregate) (models.SegmentAggregate, bool) {
	return pick(rows, func(a, b float64) bool { return a < b })
}

func pick(rows []models.SegmentAggregate, better func(a, b float64) bool) (models.SegmentAggregate, bool) {
	var (
		best  models.SegmentAggregate
		bestV float64
		found bool
	)
	for _, r := range rows {
		v, ok := r.KPIs.ROAS.Value()
		if !ok {
			continue
		}
		if !found || better(v, bestV) {
			best, bestV, found = r, v, true
		}
	}
	return best, found
}

func Synthesize(in Input) Insights {
	var out Insights

	for _, d := range models.Dimensions {
		rows := in.Segments.Get(d)
		if b, ok := Best(rows); ok {
			roas, _ := b.KPIs.ROAS.Value()
			out.Best = append(out.Best, Performer{Dimension: d, Key: b.Key, Label: b.Label, ROAS: roas})
			out.TopPerformers = append(out.TopPerformers, bestLine(d, b.Label, roas))
		}
		if w, ok := Worst(rows); ok {
			roas, _ := w.KPIs.ROAS.Value()
			out.Worst = append(out.Worst, Performer{Dimension: d, Key: w.Key, Label: w.Label, ROAS: roas})
			if roas < breakEvenROAS {
				out.Opportunities = append(out.Opportunities, worstLine(d, w.Label, roas))
			}
		}
	}

	out.Opportunities = append(out.Opportunities, highCPC(in.Segments.Campaign)...)
	out.Anomalies = anomalyLines(in.Anomalies)

	if in.Trend != nil {
		dir := "decreasing"
		if in.Trend.Increasing() {
			dir = "increasing"
		}
		line := "Revenue trend is " + dir
		if pct, ok := in.Trend.ChangePct.Value(); ok {
			line += fmt.Sprintf(" (%+.1f%% last week vs first week)", pct)
		}
		out.Trends = append(out.Trends, line)
	}
	for _, r := range in.Segments.Device {
		if r.Key == string(models.DeviceMobile) {
			if roas, ok := r.KPIs.ROAS.Value(); ok {
				out.Trends = append(out.Trends, fmt.Sprintf("Mobile ROAS: %.2fx", roas))
			}
		}
	}
	if roas, ok := in.Overall.KPIs.ROAS.Value(); ok {
		out.Trends = append(out.Trends, fmt.Sprintf("Overall ROAS: %.2fx", roas))
	}

	out.Recommendations = recommendations(in.Segments)
	return out
}

func bestLine(d models.Dimension, label string, roas float64) string {
	switch d {
	case models.DimensionCampaign:
		return fmt.Sprintf("Best ROAS campaign: %s (%.2fx)", label, roas)
	case models.DimensionDevice:
		return fmt.Sprintf("Best device: %s (ROAS: %.2fx)", label, roas)
	}
	return fmt.Sprintf("Best location: %s (ROAS: %.2fx)", label, roas)
}

func worstLine(d models.Dimension, label string, roas float64) string {
	switch d {
	case models.DimensionCampaign:
		return fmt.Sprintf("Consider pausing %s (ROAS: %.2fx)", label, roas)
	case models.DimensionDevice:
		return fmt.Sprintf("Reduce bids on %s devices (ROAS: %.2fx)", label, roas)
	}
	return fmt.Sprintf("Review targeting in %s (ROAS: %.2fx)", label, roas)
}

// highCPC lists campaigns whose CPC exceeds 1.5x the mean campaign CPC.
func highCPC(rows []models.SegmentAggregate) []string {
	sum, n := 0.0, 0
	for _, r := range rows {
		if v, ok := r.KPIs.CPC.Value(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	limit := sum / float64(n) * highCPCFactor
	var out []string
	for _, r := range rows {
		if v, ok := r.KPIs.CPC.Value(); ok && v > limit {
			out = append(out, fmt.Sprintf("Optimize bids for %s (CPC: $%.2f)", r.Label, v))
		}
	}
	return out
}

func anomalyLines(flags []models.AnomalyFlag) []string {
	if len(flags) == 0 {
		return nil
	}
	top := anomaly.Strongest(flags)[0]
	return []string{fmt.Sprintf("%d anomalous values detected; strongest: %s on %s (%.2f, z=%.2f)",
		len(flags), top.Metric, top.Date.Format(models.DateLayout), top.Value, top.ZScore)}
}

func recommendations(s metrics.Segments) []string {
	var out []string
	for _, r := range s.Campaign {
		if v, ok := r.KPIs.ROAS.Value(); ok && v > highROAS {
			out = append(out, "Increase budget allocation to high-ROAS campaigns")
			break
		}
	}
	best, bok := Best(s.Device)
	worst, wok := Worst(s.Device)
	if bok && wok {
		hi, _ := best.KPIs.ROAS.Value()
		lo, _ := worst.KPIs.ROAS.Value()
		if hi > lo*deviceSpread {
			out = append(out, "Optimize device targeting based on performance")
		}
	}
	if len(s.Location) > 0 {
		ranked := metrics.ByRevenue(s.Location)
		if len(ranked) > topLocations {
			ranked = ranked[:topLocations]
		}
		names := make([]string, len(ranked))
		for i, r := range ranked {
			names[i] = r.Label
		}
		out = append(out, "Consider expanding to top-performing locations: "+strings.Join(names, ", "))
	}
	return out
}
