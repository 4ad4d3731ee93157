package metrics

import (
	"github.com/AngelCh415/adperf/internal/models"
)

// Summary is the totals and KPIs of a whole batch.
type Summary struct {
	Totals models.Totals `json:"totals"`
	KPIs   models.KPISet `json:"kpis"`
}

// Sum adds up the raw metrics of b.
func Sum(b models.Batch) models.Totals {
	var t models.Totals
	for _, r := range b {
		t.Add(r)
	}
	return t
}

// Compute derives the KPIs from summed numerators and denominators. Any KPI
// whose denominator is zero is undefined.
func Compute(t models.Totals) models.KPISet {
	cost := t.CostFloat()
	clicks := float64(t.Clicks)
	conv := float64(t.Conversions)
	return models.KPISet{
		CTR:            models.Ratio(100*clicks, float64(t.Impressions)),
		CPC:            models.Ratio(cost, clicks),
		CPA:            models.Ratio(cost, conv),
		ROAS:           models.Ratio(t.RevenueFloat(), cost),
		ConversionRate: models.Ratio(100*conv, clicks),
	}
}

// Overall summarises the whole batch.
func Overall(b models.Batch) (Summary, error) {
	if len(b) == 0 {
		return Summary{}, models.ErrEmptyBatch
	}
	t := Sum(b)
	return Summary{Totals: t, KPIs: Compute(t)}, nil
}
