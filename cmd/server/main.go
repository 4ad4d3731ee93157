package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AngelCh415/adperf/internal/config"
	"github.com/AngelCh415/adperf/internal/httpx"
	"github.com/AngelCh415/adperf/internal/ingest"
	"github.com/AngelCh415/adperf/internal/logger"
	"github.com/AngelCh415/adperf/internal/pipeline"
	"github.com/AngelCh415/adperf/internal/sink"
	"github.com/AngelCh415/adperf/internal/store"
	"github.com/AngelCh415/adperf/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer := logger.New(cfg.Log)
	defer closer.Close()
	slog.SetDefault(log)

	rec := telemetry.NewRecorder()
	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	p := pipeline.New(log, rec, pipeline.OptionsFrom(cfg.Analysis))
	st := store.NewMemoryStore(cfg.Store.Capacity)
	push := sink.New(cl, cfg.SinkURL, cfg.SinkSecret, log)

	r := httpx.NewRouter(httpx.Deps{
		Log:       log,
		Pipeline:  p,
		Store:     st,
		Telemetry: rec,
		Client:    cl,
		Sink:      push,
		SourceURL: cfg.SourceURL,
		MaxBodyMB: cfg.MaxBodyMB,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("port", cfg.Port), slog.Bool("sink", push.Enabled()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("err", err.Error()))
			closer.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("shutdown", slog.String("err", err.Error()))
		}
	}
}
