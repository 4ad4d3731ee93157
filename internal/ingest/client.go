package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AngelCh415/adperf/internal/models"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// MaxRetries is how many times a failed fetch is retried.
const MaxRetries = 3

// NewBackOff returns the retry schedule: exponential from 100ms with jitter.
func NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, MaxRetries)
}

// Fetch downloads a batch from the producer at url. Transport errors, 429
// and 5xx are retried; other statuses and undecodable bodies are not.
func Fetch(ctx context.Context, c HTTPClient, url string) (models.RawBatch, error) {
	if url == "" {
		return models.RawBatch{}, errors.New("empty url")
	}
	var out models.RawBatch
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/csv, application/x-ndjson")
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("non-2xx: %d body=%s", resp.StatusCode, string(b))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		out, err = Decode(resp.Header.Get("Content-Type"), resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(NewBackOff(), ctx)); err != nil {
		return models.RawBatch{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	return out, nil
}
