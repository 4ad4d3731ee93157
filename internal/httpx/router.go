package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/AngelCh415/adperf/internal/cleaning"
	"github.com/AngelCh415/adperf/internal/ingest"
	"github.com/AngelCh415/adperf/internal/metrics"
	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/pipeline"
	"github.com/AngelCh415/adperf/internal/report"
	"github.com/AngelCh415/adperf/internal/sink"
	"github.com/AngelCh415/adperf/internal/store"
	"github.com/AngelCh415/adperf/internal/telemetry"
	"github.com/AngelCh415/adperf/internal/timeseries"
	"github.com/AngelCh415/adperf/internal/utils"
)

// Deps are the collaborators the API needs. Client, Sink and SourceURL are
// optional.
type Deps struct {
	Log       *slog.Logger
	Pipeline  *pipeline.Pipeline
	Store     *store.MemoryStore
	Telemetry *telemetry.Recorder
	Client    ingest.HTTPClient
	Sink      *sink.Pusher
	SourceURL string
	MaxBodyMB int64
}

type api struct{ Deps }

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.MaxBodyMB <= 0 {
		d.MaxBodyMB = 32
	}
	a := &api{d}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(d.Log))
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	if d.Telemetry != nil {
		mux.Method(http.MethodGet, "/metrics", d.Telemetry.Handler())
	}

	mux.Route("/runs", func(r chi.Router) {
		r.With(utils.LimitBody(d.MaxBodyMB<<20)).Post("/", a.createRun)
		r.Post("/fetch", a.fetchRun)
		r.Get("/", a.listRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getRun)
			r.Get("/quality", a.getQuality)
			r.Get("/segments/{dimension}", a.getSegments)
			r.Get("/daily", a.getDaily)
			r.Get("/anomalies", a.getAnomalies)
			r.Get("/insights", a.getInsights)
			r.Get("/report.xlsx", a.getReport)
			r.Get("/cleaned.csv", a.getCleaned)
		})
	})
	return mux
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: err.Error(), RequestID: utils.RID(r.Context())})
}

// statusFor maps pipeline and store errors onto HTTP statuses.
func statusFor(err error) int {
	var schema *models.SchemaError
	var tooBig *http.MaxBytesError
	var unknown *timeseries.UnknownMetricError
	switch {
	case errors.As(err, &schema), errors.Is(err, models.ErrEmptyBatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// runCreated is the response to a new run.
type runCreated struct {
	ID       string               `json:"id"`
	Quality  models.QualityReport `json:"quality"`
	Cleaning cleaning.Stats       `json:"cleaning"`
	Overall  metrics.Summary      `json:"overall"`
	Findings []string             `json:"findings"`
}

func (a *api) createRun(w http.ResponseWriter, r *http.Request) {
	raw, err := ingest.Decode(r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		fail(w, r, status, err)
		return
	}
	a.analyze(w, r, "upload", raw)
}

func (a *api) fetchRun(w http.ResponseWriter, r *http.Request) {
	if a.SourceURL == "" || a.Client == nil {
		fail(w, r, http.StatusBadRequest, errors.New("source url not configured"))
		return
	}
	raw, err := ingest.Fetch(r.Context(), a.Client, a.SourceURL)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		fail(w, r, status, err)
		return
	}
	a.analyze(w, r, a.SourceURL, raw)
}

func (a *api) analyze(w http.ResponseWriter, r *http.Request, source string, raw models.RawBatch) {
	res, err := a.Pipeline.Run(r.Context(), raw)
	if err != nil {
		fail(w, r, statusFor(err), err)
		return
	}
	run := a.Store.Put(source, res)
	if a.Sink.Enabled() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
		go func() {
			defer cancel()
			if err := a.Sink.Push(ctx, sink.NewSummary(run.ID, res)); err != nil {
				a.Log.Warn("sink push failed", slog.String("run_id", run.ID), slog.String("err", err.Error()))
			}
		}()
	}
	w.Header().Set("Location", "/runs/"+run.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, runCreated{
		ID:       run.ID,
		Quality:  res.Quality,
		Cleaning: res.Cleaning.Stats,
		Overall:  res.Overall,
		Findings: res.Findings,
	})
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.Store.List())
}

// run loads the {id} run or answers 404.
func (a *api) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	run, err := a.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, statusFor(err), err)
		return nil, false
	}
	return run.Result, true
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, statusFor(err), err)
		return
	}
	render.JSON(w, r, run)
}

func (a *api) getQuality(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]any{
		"report":  res.Quality,
		"checks":  res.Quality.Checks(),
		"changes": res.Cleaning.Changes,
		"bounds":  res.Cleaning.Bounds,
		"medians": res.Cleaning.Medians,
	})
}

func (a *api) getSegments(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	dim, err := models.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	limit, err1 := intParam(q.Get("limit"), 0)
	offset, err2 := intParam(q.Get("offset"), 0)
	if err := errors.Join(err1, err2); err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	rows := res.Segments.Get(dim)
	if q.Get("sort") == "revenue" {
		rows = metrics.ByRevenue(rows)
	}
	render.JSON(w, r, map[string]any{
		"dimension": dim,
		"total":     len(rows),
		"rows":      metrics.Paginate(rows, limit, offset),
	})
}

func (a *api) getDaily(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	name := q.Get("metric")
	if name == "" {
		render.JSON(w, r, res.Daily)
		return
	}
	window, err := intParam(q.Get("window"), a.Pipeline.Options().Window)
	if err == nil && window < 1 {
		err = fmt.Errorf("window must be at least 1, got %d", window)
	}
	if err != nil {
		fail(w, r, http.StatusBadRequest, err)
		return
	}
	pts, err := timeseries.Smooth(res.Daily, name, window)
	if err != nil {
		fail(w, r, statusFor(err), err)
		return
	}
	render.JSON(w, r, map[string]any{"metric": name, "window": window, "points": pts})
}

func (a *api) getAnomalies(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	flags := res.Anomalies
	if flags == nil {
		flags = []models.AnomalyFlag{}
	}
	render.JSON(w, r, flags)
}

func (a *api) getInsights(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]any{
		"insights": res.Insights,
		"trend":    res.Trend,
		"findings": res.Findings,
	})
}

func (a *api) getReport(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	f, err := report.Build(res)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
	if err := f.Write(w); err != nil {
		a.Log.Error("write report", slog.String("err", err.Error()))
	}
}

func (a *api) getCleaned(w http.ResponseWriter, r *http.Request) {
	res, ok := a.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := ingest.WriteCSV(w, res.Records); err != nil {
		a.Log.Error("write cleaned csv", slog.String("err", err.Error()))
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q", s)
	}
	return n, nil
}
