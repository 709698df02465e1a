// Package upstream implements C1, the Upstream API Client: one HTTP call
// per upstream method, token-scoped rate limiting, retry with backoff, and
// error classification (spec §4.1).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Config configures a per-tenant client instance.
type Config struct {
	BaseURL     string
	Token       string
	RateLimit   int           // calls
	RateWindow  time.Duration // per window
	MaxAttempts uint64        // retry attempts for transient failures
	HTTPTimeout time.Duration
}

// Client calls the upstream commerce/inventory API on behalf of one tenant
// token. Requests are admitted by this client's sliding-window limiter and
// retried with exponential backoff+jitter on transient failure. Modeled on
// the teacher's tradernet SDK client, generalized from a fixed per-request
// delay to a sliding N-per-T-second admission window.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *slidingWindowLimiter
	log        zerolog.Logger

	closeOnce sync.Once
}

// NewClient constructs a Client for one tenant token.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 60 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    newSlidingWindowLimiter(cfg.RateLimit, cfg.RateWindow),
		log:        log.With().Str("component", "upstream-client").Logger(),
	}
}

// Call performs one upstream method invocation, blocking for rate-limit
// admission and retrying transient failures. Returns the normalized
// response body as a map (array responses are wrapped under "result", as
// the upstream API returns either shape interchangeably).
func (c *Client) Call(ctx context.Context, method string, params any) (map[string]any, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &TransportError{Err: err}
	}

	var result map[string]any

	operation := func() error {
		resp, err := c.doRequest(ctx, method, params)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxAttempts),
		ctx,
	)

	err := backoff.RetryNotify(operation, bo, func(err error, d time.Duration) {
		c.log.Warn().Err(err).Str("method", method).Dur("backoff", d).Msg("retrying upstream call")
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// doRequest performs a single HTTP attempt, classifying the outcome into a
// permanent (non-retryable) or transient error per spec §4.1.
func (c *Client) doRequest(ctx context.Context, method string, params any) (map[string]any, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal params: %w", err))
	}

	url := fmt.Sprintf("%s/api/%s", c.cfg.BaseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &UpstreamRateLimited{Method: method}
	}
	if resp.StatusCode >= 500 {
		return nil, &UpstreamServerError{Code: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		bodyStr := truncate(string(body), 500)
		return nil, backoff.Permanent(&UpstreamClientError{Code: resp.StatusCode, Message: bodyStr})
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.Error().Err(err).Str("method", method).Str("body", truncate(string(body), 500)).
			Msg("failed to parse upstream response")
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}

	return normalize(raw), nil
}

// normalize wraps array responses as {"result": [...]} so callers always
// see a map, matching the shape the upstream API returns interchangeably.
func normalize(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	default:
		return map[string]any{"result": v}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
