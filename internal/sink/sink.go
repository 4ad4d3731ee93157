// Package sink pushes run summaries to a downstream HTTP endpoint.
package sink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AngelCh415/adperf/internal/ingest"
	"github.com/AngelCh415/adperf/internal/metrics"
	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/pipeline"
)

var ErrNotConfigured = errors.New("sink not configured")

// SignatureHeader carries the hex HMAC-SHA256 of the body.
const SignatureHeader = "X-Signature"

// Summary is the payload pushed for one run.
type Summary struct {
	RunID      string               `json:"run_id"`
	Rows       int                  `json:"rows"`
	DateFrom   string               `json:"date_from,omitempty"`
	DateTo     string               `json:"date_to,omitempty"`
	Overall    metrics.Summary      `json:"overall"`
	Issues     int                  `json:"quality_issues"`
	Anomalies  []models.AnomalyFlag `json:"anomalies"`
	Findings   []string             `json:"findings"`
	ExportedAt time.Time            `json:"exported_at"`
}

func NewSummary(runID string, res *pipeline.Result) Summary {
	s := Summary{
		RunID:      runID,
		Rows:       res.Cleaning.Stats.OutputRows,
		DateFrom:   res.Quality.DateFrom,
		DateTo:     res.Quality.DateTo,
		Overall:    res.Overall,
		Issues:     res.Quality.Issues(),
		Anomalies:  res.Anomalies,
		Findings:   res.Findings,
		ExportedAt: time.Now().UTC(),
	}
	if s.Anomalies == nil {
		s.Anomalies = []models.AnomalyFlag{}
	}
	return s
}

type Pusher struct {
	c      ingest.HTTPClient
	url    string
	secret string
	log    *slog.Logger
	newBO  func() backoff.BackOff
}

func New(c ingest.HTTPClient, url, secret string, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.Default()
	}
	return &Pusher{c: c, url: url, secret: secret, log: log, newBO: ingest.NewBackOff}
}

func (p *Pusher) Enabled() bool { return p != nil && p.url != "" && p.secret != "" }

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of body under secret.
func Verify(secret string, body []byte, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Push posts s to the sink. 5xx and transport errors are retried.
func (p *Pusher) Push(ctx context.Context, s Summary) error {
	if !p.Enabled() {
		return ErrNotConfigured
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	sig := Sign(p.secret, b)

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SignatureHeader, sig)
		resp, err := p.c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("sink non-2xx: %d", resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(p.newBO(), ctx)); err != nil {
		return fmt.Errorf("push run %s: %w", s.RunID, err)
	}
	p.log.Info("summary pushed", slog.String("run_id", s.RunID), slog.Int("attempts", attempt))
	return nil
}
