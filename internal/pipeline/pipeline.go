package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AngelCh415/adperf/internal/anomaly"
	"github.com/AngelCh415/adperf/internal/cleaning"
	"github.com/AngelCh415/adperf/internal/config"
	"github.com/AngelCh415/adperf/internal/features"
	"github.com/AngelCh415/adperf/internal/insights"
	"github.com/AngelCh415/adperf/internal/metrics"
	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/quality"
	"github.com/AngelCh415/adperf/internal/telemetry"
	"github.com/AngelCh415/adperf/internal/timeseries"
)

type Options struct {
	AnomalyThreshold float64
	AnomalyMetrics   []string
	SmoothedMetrics  []string
	Window           int
}

func DefaultOptions() Options {
	return Options{
		AnomalyThreshold: anomaly.DefaultThreshold,
		AnomalyMetrics:   anomaly.DefaultMetrics,
		SmoothedMetrics:  []string{timeseries.MetricRevenue, models.KPICTR, models.KPIROAS},
		Window:           timeseries.DefaultWindow,
	}
}

func OptionsFrom(c config.AnalysisConfig) Options {
	o := DefaultOptions()
	if c.AnomalyThreshold > 0 {
		o.AnomalyThreshold = c.AnomalyThreshold
	}
	if len(c.AnomalyMetrics) > 0 {
		o.AnomalyMetrics = c.AnomalyMetrics
	}
	if len(c.SmoothedMetrics) > 0 {
		o.SmoothedMetrics = c.SmoothedMetrics
	}
	if c.MovingAvgWindow > 0 {
		o.Window = c.MovingAvgWindow
	}
	return o
}

// Pipeline chains the analysis stages. It keeps no state between runs, so
// one value can serve concurrent runs over independent batches.
type Pipeline struct {
	log  *slog.Logger
	rec  *telemetry.Recorder
	opts Options
}

func New(log *slog.Logger, rec *telemetry.Recorder, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = telemetry.NewRecorder()
	}
	return &Pipeline{log: log.With("component", "pipeline"), rec: rec, opts: opts}
}

func (p *Pipeline) Options() Options { return p.opts }

// Result carries every artifact of one run.
type Result struct {
	Quality   models.QualityReport          `json:"quality"`
	Cleaning  cleaning.Result               `json:"cleaning"`
	Records   []models.Enriched             `json:"-"`
	Overall   metrics.Summary               `json:"overall"`
	Segments  metrics.Segments              `json:"segments"`
	Daily     []models.DailyPoint           `json:"daily"`
	Smoothed  map[string][]timeseries.Point `json:"smoothed"`
	Trend     timeseries.TrendSummary       `json:"trend"`
	Anomalies []models.AnomalyFlag          `json:"anomalies"`
	Insights  insights.Insights             `json:"insights"`
	Findings  []string                      `json:"findings"`
	Duration  time.Duration                 `json:"duration_ns"`
}

// Run analyses one raw batch. Bad values are repaired and reported; only a
// broken schema or a batch left empty after cleaning fails the run.
func (p *Pipeline) Run(ctx context.Context, raw models.RawBatch) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, raw)
	if err != nil {
		p.rec.Run("error")
		p.log.Error("pipeline run failed", slog.Int("rows", raw.Len()), slog.String("err", err.Error()))
		return nil, err
	}
	res.Duration = time.Since(start)
	p.rec.Run("ok")
	p.log.Info("pipeline run complete",
		slog.Int("rows_in", res.Cleaning.Stats.InputRows),
		slog.Int("rows_out", res.Cleaning.Stats.OutputRows),
		slog.Int("anomalies", len(res.Anomalies)),
		slog.Duration("took", res.Duration))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, raw models.RawBatch) (*Result, error) {
	var res Result
	var err error

	done := p.rec.Stage("validate")
	res.Quality, err = quality.Assess(raw)
	done()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	for _, c := range res.Quality.Checks() {
		p.rec.QualityIssue(c.Name, c.Count)
	}
	p.log.Debug("quality assessed",
		slog.Int("records", res.Quality.TotalRecords),
		slog.Int("duplicates", res.Quality.DuplicateRecords),
		slog.Int("issues", res.Quality.Issues()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done = p.rec.Stage("clean")
	res.Cleaning, err = cleaning.Clean(raw)
	done()
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	st := res.Cleaning.Stats
	p.rec.Rows("input", st.InputRows)
	p.rec.Rows("output", st.OutputRows)
	p.rec.Rows("dropped", st.InputRows-st.OutputRows)
	p.rec.Repairs(cleaning.PolicyDefault, st.Defaulted)
	p.rec.Repairs(cleaning.PolicyMedian, st.Imputed)
	p.rec.Repairs(cleaning.PolicyClip, st.Clipped)
	p.rec.Repairs(cleaning.PolicyClamp, st.Clamped)
	if !st.Converged {
		p.log.Warn("clipping did not settle", slog.Int("passes", st.Passes))
	}
	batch := res.Cleaning.Batch
	if len(batch) == 0 {
		return nil, fmt.Errorf("clean: no rows left: %w", models.ErrEmptyBatch)
	}

	done = p.rec.Stage("derive")
	res.Records = features.Derive(batch)
	done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done = p.rec.Stage("kpi")
	res.Overall, err = metrics.Overall(batch)
	if err == nil {
		res.Segments, err = metrics.SegmentAll(ctx, batch)
	}
	done()
	if err != nil {
		return nil, fmt.Errorf("kpi: %w", err)
	}

	done = p.rec.Stage("timeseries")
	res.Daily, err = timeseries.Daily(batch)
	if err == nil {
		res.Trend, err = timeseries.Trend(res.Daily)
	}
	if err == nil {
		res.Smoothed = make(map[string][]timeseries.Point, len(p.opts.SmoothedMetrics))
		for _, m := range p.opts.SmoothedMetrics {
			var pts []timeseries.Point
			pts, err = timeseries.Smooth(res.Daily, m, p.opts.Window)
			if err != nil {
				break
			}
			res.Smoothed[m] = pts
		}
	}
	done()
	if err != nil {
		return nil, fmt.Errorf("timeseries: %w", err)
	}

	done = p.rec.Stage("anomaly")
	res.Anomalies, err = anomaly.DetectDaily(res.Daily, p.opts.AnomalyMetrics, p.opts.AnomalyThreshold)
	done()
	if err != nil {
		return nil, fmt.Errorf("anomaly: %w", err)
	}
	for _, f := range res.Anomalies {
		p.rec.Anomaly(f.Metric)
	}

	res.Insights = insights.Synthesize(insights.Input{
		Overall:   res.Overall,
		Segments:  res.Segments,
		Trend:     &res.Trend,
		Anomalies: res.Anomalies,
	})
	res.Findings = res.Insights.Findings()
	return &res, nil
}
