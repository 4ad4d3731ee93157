package timeseries

import (
	"time"

	"github.com/AngelCh415/adperf/internal/models"
)

// TrendSummary compares the first and last week of daily revenue.
type TrendSummary struct {
	Days            int           `json:"days"`
	FirstWeekAvg    float64       `json:"first_week_avg_revenue"`
	LastWeekAvg     float64       `json:"last_week_avg_revenue"`
	ChangePct       models.Metric `json:"revenue_change_pct"`
	BestDay         time.Time     `json:"best_day"`
	BestDayRevenue  float64       `json:"best_day_revenue"`
	WorstDay        time.Time     `json:"worst_day"`
	WorstDayRevenue float64       `json:"worst_day_revenue"`
}

// Increasing reports whether last-week revenue beat the first week.
func (t TrendSummary) Increasing() bool { return t.LastWeekAvg > t.FirstWeekAvg }

// Trend summarises daily revenue. With fewer than 7 days the two weeks
// overlap. Ties for best and worst day keep the earliest date.
func Trend(points []models.DailyPoint) (TrendSummary, error) {
	if len(points) == 0 {
		return TrendSummary{}, models.ErrEmptyBatch
	}
	rev := make([]float64, len(points))
	for i, p := range points {
		rev[i] = p.Totals.RevenueFloat()
	}
	n := DefaultWindow
	if n > len(rev) {
		n = len(rev)
	}
	t := TrendSummary{
		Days:         len(points),
		FirstWeekAvg: mean(rev[:n]),
		LastWeekAvg:  mean(rev[len(rev)-n:]),
	}
	if t.FirstWeekAvg > 0 {
		t.ChangePct = models.Defined((t.LastWeekAvg - t.FirstWeekAvg) / t.FirstWeekAvg * 100)
	}
	best, worst := 0, 0
	for i, v := range rev {
		if v > rev[best] {
			best = i
		}
		if v < rev[worst] {
			worst = i
		}
	}
	t.BestDay, t.BestDayRevenue = points[best].Date, rev[best]
	t.WorstDay, t.WorstDayRevenue = points[worst].Date, rev[worst]
	return t, nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
