package features

import (
	"time"

	"github.com/AngelCh415/adperf/internal/models"
)

// Breakpoints shared by the CTR and ROAS buckets.
var Breakpoints = []float64{0, 1, 2, 5, 100}

var (
	CTRLabels  = []string{"Low", "Medium", "High", "Very High"}
	ROASLabels = []string{"Poor", "Break-even", "Good", "Excellent"}
)

// Derive enriches every record of a cleaned batch. It is a pure mapping;
// the output has the same length and order as b.
func Derive(b models.Batch) []models.Enriched {
	out := make([]models.Enriched, 0, len(b))
	for _, r := range b {
		out = append(out, Enrich(r))
	}
	return out
}

func Enrich(r models.Record) models.Enriched {
	_, week := r.Date.ISOWeek()
	wd := r.Date.Weekday()
	ctr := models.Ratio(100*float64(r.Clicks), float64(r.Impressions))
	roas := models.Ratio(r.Revenue, r.Cost)
	return models.Enriched{
		Record:            r,
		DayOfWeek:         wd.String(),
		Month:             int(r.Date.Month()),
		Week:              week,
		IsWeekend:         wd == time.Saturday || wd == time.Sunday,
		CTR:               ctr,
		CTRCategory:       Bucket(ctr, Breakpoints, CTRLabels),
		ROAS:              roas,
		ROASCategory:      Bucket(roas, Breakpoints, ROASLabels),
		CostPerImpression: models.Ratio(r.Cost, float64(r.Impressions)),
		RevenuePerClick:   models.Ratio(r.Revenue, float64(r.Clicks)),
	}
}

// Bucket places m into bins (edges[i], edges[i+1]] labelled labels[i].
// Values at or below the first edge fall in the first bin, values above the
// last edge in the last bin, and an undefined metric in the first bin.
func Bucket(m models.Metric, edges []float64, labels []string) string {
	v, ok := m.Value()
	if !ok {
		return labels[0]
	}
	for i, l := range labels {
		if v <= edges[i+1] {
			return l
		}
	}
	return labels[len(labels)-1]
}
