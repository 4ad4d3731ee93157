package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Totals are summed raw metrics. Currency is summed in decimal so a total
// does not depend on the order rows were added in.
type Totals struct {
	Rows        int
	Impressions int64
	Clicks      int64
	Conversions int64
	Cost        decimal.Decimal
	Revenue     decimal.Decimal
}

func (t *Totals) Add(r Record) {
	t.Rows++
	t.Impressions += r.Impressions
	t.Clicks += r.Clicks
	t.Conversions += r.Conversions
	t.Cost = t.Cost.Add(decimal.NewFromFloat(r.Cost))
	t.Revenue = t.Revenue.Add(decimal.NewFromFloat(r.Revenue))
}

func (t Totals) Merge(o Totals) Totals {
	return Totals{
		Rows:        t.Rows + o.Rows,
		Impressions: t.Impressions + o.Impressions,
		Clicks:      t.Clicks + o.Clicks,
		Conversions: t.Conversions + o.Conversions,
		Cost:        t.Cost.Add(o.Cost),
		Revenue:     t.Revenue.Add(o.Revenue),
	}
}

func (t Totals) CostFloat() float64    { return t.Cost.InexactFloat64() }
func (t Totals) RevenueFloat() float64 { return t.Revenue.InexactFloat64() }

func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rows        int     `json:"rows"`
		Impressions int64   `json:"impressions"`
		Clicks      int64   `json:"clicks"`
		Conversions int64   `json:"conversions"`
		Cost        float64 `json:"cost"`
		Revenue     float64 `json:"revenue"`
	}{t.Rows, t.Impressions, t.Clicks, t.Conversions, t.CostFloat(), t.RevenueFloat()})
}

// KPI names.
const (
	KPICTR            = "ctr"
	KPICPC            = "cpc"
	KPICPA            = "cpa"
	KPIROAS           = "roas"
	KPIConversionRate = "conversion_rate"
)

var KPINames = []string{KPICTR, KPICPC, KPICPA, KPIROAS, KPIConversionRate}

// KPISet holds the derived ratios; each is undefined when its denominator
// is zero.
type KPISet struct {
	CTR            Metric `json:"ctr"`
	CPC            Metric `json:"cpc"`
	CPA            Metric `json:"cpa"`
	ROAS           Metric `json:"roas"`
	ConversionRate Metric `json:"conversion_rate"`
}

func (k KPISet) Get(name string) (Metric, bool) {
	switch name {
	case KPICTR:
		return k.CTR, true
	case KPICPC:
		return k.CPC, true
	case KPICPA:
		return k.CPA, true
	case KPIROAS:
		return k.ROAS, true
	case KPIConversionRate:
		return k.ConversionRate, true
	}
	return Metric{}, false
}

// Dimension is a segmentation axis.
type Dimension string

const (
	DimensionCampaign Dimension = "campaign"
	DimensionDevice   Dimension = "device"
	DimensionLocation Dimension = "location"
)

var Dimensions = []Dimension{DimensionCampaign, DimensionDevice, DimensionLocation}

func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// SegmentAggregate is one row of a segment table.
type SegmentAggregate struct {
	Dimension Dimension `json:"dimension"`
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Totals    Totals    `json:"totals"`
	KPIs      KPISet    `json:"kpis"`
}

// DailyPoint is one day of totals and KPIs across the batch.
type DailyPoint struct {
	Date   time.Time `json:"date"`
	Totals Totals    `json:"totals"`
	KPIs   KPISet    `json:"kpis"`
}

// AnomalyFlag marks a day whose metric lies at least threshold standard
// deviations from the mean.
type AnomalyFlag struct {
	Date   time.Time `json:"date"`
	Metric string    `json:"metric"`
	Value  float64   `json:"value"`
	ZScore float64   `json:"z_score"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
	Lower  float64   `json:"expected_low"`
	Upper  float64   `json:"expected_high"`
}

// Change records one repair made by the cleaner. Row is the index in the
// input batch.
type Change struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	From   string `json:"from"`
	To     string `json:"to"`
	Policy string `json:"policy"`
}

// Enriched is a cleaned record plus derived attributes.
type Enriched struct {
	Record
	DayOfWeek         string `json:"day_of_week"`
	Month             int    `json:"month"`
	Week              int    `json:"week"`
	IsWeekend         bool   `json:"is_weekend"`
	CTR               Metric `json:"ctr"`
	CTRCategory       string `json:"ctr_category"`
	ROAS              Metric `json:"roas"`
	ROASCategory      string `json:"roas_category"`
	CostPerImpression Metric `json:"cost_per_impression"`
	RevenuePerClick   Metric `json:"revenue_per_click"`
}
