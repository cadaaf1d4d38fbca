package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const userAgent = "GrantRadar/1.0 (grant-program-monitor)"

// RetryConfig bounds the per-request retry loop shared by all
// collector strategies.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Fetcher is a retrying HTTP GET helper. Transient failures and 5xx
// responses are retried with exponential backoff until the attempt
// budget runs out.
type Fetcher struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// NewFetcher wires an HTTP client; a nil client gets a 30s timeout
// default.
func NewFetcher(client *http.Client, cfg RetryConfig) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode >= http.StatusInternalServerError
		}).
		Build()

	return &Fetcher{client: client, executor: failsafe.With(retry)}
}

// Get fetches the URL body, retrying per the configured policy.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json, application/xml, text/html")

		r, doErr := f.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= http.StatusInternalServerError {
			// Drain so the connection can be reused across attempts.
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	return body, nil
}
