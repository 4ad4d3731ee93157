// Package report renders a pipeline result as an Excel workbook.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/pipeline"
)

// Sheet names, in workbook order.
const (
	SheetSummary   = "Summary"
	SheetQuality   = "Quality"
	SheetCampaigns = "Campaigns"
	SheetDevices   = "Devices"
	SheetLocations = "Locations"
	SheetDaily     = "Daily"
	SheetAnomalies = "Anomalies"
	SheetInsights  = "Insights"
)

var Sheets = []string{
	SheetSummary, SheetQuality, SheetCampaigns, SheetDevices,
	SheetLocations, SheetDaily, SheetAnomalies, SheetInsights,
}

var kpiHeader = []string{"CTR %", "CPC", "CPA", "ROAS", "Conversion rate %"}

// Build lays the result out over one sheet per section. The caller closes
// the returned file.
func Build(res *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, s := range Sheets[1:] {
		if _, err := f.NewSheet(s); err != nil {
			f.Close()
			return nil, err
		}
	}
	w := &writer{f: f}
	w.summary(res)
	w.quality(res.Quality)
	w.segments(SheetCampaigns, "Campaign", res.Segments.Campaign)
	w.segments(SheetDevices, "Device", res.Segments.Device)
	w.segments(SheetLocations, "Location", res.Segments.Location)
	w.daily(res.Daily)
	w.anomalies(res.Anomalies)
	w.insights(res.Findings)
	if w.err != nil {
		f.Close()
		return nil, fmt.Errorf("build report: %w", w.err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook for res to out.
func Write(out io.Writer, res *pipeline.Result) error {
	f, err := Build(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(out)
}

// Save writes the workbook for res to path.
func Save(path string, res *pipeline.Result) error {
	f, err := Build(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// writer keeps the first error so section code stays linear.
type writer struct {
	f   *excelize.File
	err error
}

func (w *writer) row(sheet string, n int, cells ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &cells)
}

func (w *writer) header(sheet string, names ...string) {
	cells := make([]any, len(names))
	for i, n := range names {
		cells[i] = n
	}
	w.row(sheet, 1, cells...)
	if w.err == nil {
		last, _ := excelize.ColumnNumberToName(len(names))
		w.err = w.f.SetColWidth(sheet, "A", last, 16)
	}
}

func metric(m models.Metric) any {
	if v, ok := m.Value(); ok {
		return v
	}
	return nil
}

func kpis(k models.KPISet) []any {
	return []any{metric(k.CTR), metric(k.CPC), metric(k.CPA), metric(k.ROAS), metric(k.ConversionRate)}
}

func totals(t models.Totals) []any {
	return []any{t.Rows, t.Impressions, t.Clicks, t.Conversions, t.CostFloat(), t.RevenueFloat()}
}

var totalsHeader = []string{"Rows", "Impressions", "Clicks", "Conversions", "Cost", "Revenue"}

func (w *writer) summary(res *pipeline.Result) {
	const s = SheetSummary
	w.header(s, "Item", "Value")
	st := res.Cleaning.Stats
	lines := [][]any{
		{"Date from", res.Quality.DateFrom},
		{"Date to", res.Quality.DateTo},
		{"Input rows", st.InputRows},
		{"Rows analysed", st.OutputRows},
		{"Quality issues", res.Quality.Issues()},
		{"Impressions", res.Overall.Totals.Impressions},
		{"Clicks", res.Overall.Totals.Clicks},
		{"Conversions", res.Overall.Totals.Conversions},
		{"Cost", res.Overall.Totals.CostFloat()},
		{"Revenue", res.Overall.Totals.RevenueFloat()},
	}
	for i, name := range models.KPINames {
		m, _ := res.Overall.KPIs.Get(name)
		lines = append(lines, []any{kpiHeader[i], metric(m)})
	}
	lines = append(lines,
		[]any{"Revenue trend", trendLabel(res)},
		[]any{"Anomalies", len(res.Anomalies)},
	)
	for i, l := range lines {
		w.row(s, i+2, l...)
	}
}

func trendLabel(res *pipeline.Result) string {
	if res.Trend.Days == 0 {
		return ""
	}
	if res.Trend.Increasing() {
		return "increasing"
	}
	return "decreasing"
}

func (w *writer) quality(q models.QualityReport) {
	const s = SheetQuality
	w.header(s, "Check", "Count", "Severity")
	for i, c := range q.Checks() {
		w.row(s, i+2, c.Name, c.Count, string(c.Severity))
	}
}

func (w *writer) segments(sheet, label string, rows []models.SegmentAggregate) {
	w.header(sheet, append(append([]string{label}, totalsHeader...), kpiHeader...)...)
	for i, r := range rows {
		cells := append([]any{r.Label}, totals(r.Totals)...)
		w.row(sheet, i+2, append(cells, kpis(r.KPIs)...)...)
	}
}

func (w *writer) daily(points []models.DailyPoint) {
	const s = SheetDaily
	w.header(s, append(append([]string{"Date"}, totalsHeader...), kpiHeader...)...)
	for i, p := range points {
		cells := append([]any{p.Date.Format(models.DateLayout)}, totals(p.Totals)...)
		w.row(s, i+2, append(cells, kpis(p.KPIs)...)...)
	}
}

func (w *writer) anomalies(flags []models.AnomalyFlag) {
	const s = SheetAnomalies
	w.header(s, "Date", "Metric", "Value", "Z-score", "Mean", "Std", "Expected low", "Expected high")
	for i, a := range flags {
		w.row(s, i+2, a.Date.Format(models.DateLayout), a.Metric, a.Value, a.ZScore, a.Mean, a.Std, a.Lower, a.Upper)
	}
}

func (w *writer) insights(findings []string) {
	const s = SheetInsights
	w.header(s, "Finding")
	if w.err == nil {
		w.err = w.f.SetColWidth(s, "A", "A", 80)
	}
	for i, line := range findings {
		w.row(s, i+2, line)
	}
}
