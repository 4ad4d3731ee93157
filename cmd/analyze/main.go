// Command analyze runs the ad performance pipeline over one file or URL and
// writes the cleaned data plus an Excel report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/AngelCh415/adperf/internal/config"
	"github.com/AngelCh415/adperf/internal/ingest"
	"github.com/AngelCh415/adperf/internal/logger"
	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/pipeline"
	"github.com/AngelCh415/adperf/internal/report"
	"github.com/AngelCh415/adperf/internal/telemetry"
)

func main() {
	in := flag.String("in", "", "input file (.csv or .ndjson); - reads stdin")
	url := flag.String("url", "", "fetch the batch from this URL instead of -in")
	out := flag.String("out", "out", "output directory")
	threshold := flag.Float64("threshold", 0, "anomaly z-score threshold (default from config)")
	window := flag.Int("window", 0, "moving average window in days (default from config)")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := run(*in, *url, *out, *threshold, *window, *level); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run(in, url, out string, threshold float64, window int, level string) error {
	if (in == "") == (url == "") {
		return fmt.Errorf("exactly one of -in or -url is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Log.Level = level
	cfg.Log.Output = "stderr"
	log, closer := logger.New(cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	raw, err := load(ctx, in, url, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	opts := pipeline.OptionsFrom(cfg.Analysis)
	if threshold > 0 {
		opts.AnomalyThreshold = threshold
	}
	if window > 0 {
		opts.Window = window
	}
	res, err := pipeline.New(log, telemetry.NewRecorder(), opts).Run(ctx, raw)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	if err := writeCleaned(filepath.Join(out, "cleaned.csv"), res.Records); err != nil {
		return err
	}
	if err := report.Save(filepath.Join(out, "report.xlsx"), res); err != nil {
		return err
	}
	printSummary(os.Stdout, res)
	fmt.Fprintf(os.Stdout, "\nwrote %s and %s\n", filepath.Join(out, "cleaned.csv"), filepath.Join(out, "report.xlsx"))
	return nil
}

func load(ctx context.Context, in, url string, timeout time.Duration) (models.RawBatch, error) {
	if url != "" {
		return ingest.Fetch(ctx, ingest.NewHTTPClient(timeout), url)
	}
	var r io.Reader = os.Stdin
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return models.RawBatch{}, err
		}
		defer f.Close()
		r = f
	}
	ct := "text/csv"
	switch strings.ToLower(filepath.Ext(in)) {
	case ".json", ".jsonl", ".ndjson":
		ct = "application/x-ndjson"
	}
	return ingest.Decode(ct, r)
}

func writeCleaned(path string, recs []models.Enriched) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingest.WriteCSV(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, res *pipeline.Result) {
	q := res.Quality
	st := res.Cleaning.Stats
	fmt.Fprintf(w, "Records: %d (%s to %s), kept %d after cleaning\n", q.TotalRecords, q.DateFrom, q.DateTo, st.OutputRows)
	fmt.Fprintf(w, "Repairs: %d defaulted, %d imputed, %d clipped, %d clamped; dropped %d negative, %d bad date\n",
		st.Defaulted, st.Imputed, st.Clipped, st.Clamped, st.DroppedNegative, st.DroppedDate)
	fmt.Fprintln(w, "\nData quality:")
	issues := 0
	for _, c := range q.Checks() {
		if c.Count == 0 {
			continue
		}
		issues++
		fmt.Fprintf(w, "  %-32s %6d  %s\n", c.Name, c.Count, c.Severity)
	}
	if issues == 0 {
		fmt.Fprintln(w, "  no issues")
	}

	k := res.Overall.KPIs
	fmt.Fprintln(w, "\nOverall:")
	fmt.Fprintf(w, "  CTR %s%%  CPC $%s  CPA $%s  ROAS %sx  CVR %s%%\n",
		k.CTR.Round(2), k.CPC.Round(2), k.CPA.Round(2), k.ROAS.Round(2), k.ConversionRate.Round(2))

	fmt.Fprintln(w, "\nFindings:")
	for _, f := range res.Findings {
		fmt.Fprintf(w, "  - %s\n", f)
	}
}
