package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for floor fetches.
	DefaultFetchTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes caps the floor payload at 10 MB.
	maxResponseBytes = 10 << 20
)

// FetchOption configures FetchFloorPlans behavior.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.timeout = d }
}

// WithMaxRetries sets the number of attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) { c.maxRetries = n }
}

// WithBaseBackoff sets the first retry delay; later delays double.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.baseBackoff = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) { c.client = client }
}

// FetchFloorPlans downloads floor snapshots from a data provider. The body is
// either a JSON array of floor plans or an object with a "floors" array.
// Transport failures and non-200 responses are retried with exponential
// backoff; malformed payloads are not.
func FetchFloorPlans(ctx context.Context, url string, opts ...FetchOption) (Floors, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch floors: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := range cfg.maxRetries {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch floors: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := doFetch(ctx, client, url)
		if err != nil {
			lastErr = err
			continue
		}

		floors, err := ParseFloorPlansJSON(body)
		if err != nil {
			return nil, fmt.Errorf("fetch floors: %w", err)
		}
		return floors, nil
	}

	return nil, fmt.Errorf("fetch floors: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

// ParseFloorPlansJSON decodes and normalizes a provider payload
func ParseFloorPlansJSON(data []byte) (Floors, error) {
	var plans []FloorPlan
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &plans); err != nil {
			return nil, fmt.Errorf("parsing floor plans: %w", err)
		}
	} else {
		var wrapped struct {
			Floors []FloorPlan `json:"floors"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("parsing floor plans: %w", err)
		}
		plans = wrapped.Floors
	}

	floors := make(Floors, len(plans))
	for i := range plans {
		fp := plans[i]
		if err := fp.Normalize(); err != nil {
			return nil, err
		}
		if _, dup := floors[fp.Floor]; dup {
			return nil, fmt.Errorf("floor %d defined more than once", fp.Floor)
		}
		floors[fp.Floor] = &fp
	}
	return floors, nil
}

func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
