package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRate      = 10.0
	defaultBurst     = 5
	defaultTimeout   = 30 * time.Second
	userAgent        = "repopulse"
	maxResponseBytes = 64 << 20
)

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		limit = defaultRate
	}

	if burst <= 0 {
		burst = defaultBurst
	}

	return rate.NewLimiter(rate.Limit(limit), burst)
}

func withDefaults(stats *Stats, logger *slog.Logger) (*Stats, *slog.Logger) {
	if stats == nil {
		stats = NewStats()
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return stats, logger
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{Timeout: timeout}
}

// restClient issues rate-limited JSON GETs and counts them in stats.
type restClient struct {
	http    *http.Client
	limiter *rate.Limiter
	stats   *Stats
	api     string
}

// get fetches url. Non-2xx responses are returned with their status and
// body and counted as errors; only transport failures return an error.
func (c *restClient) get(ctx context.Context, url string) (int, []byte, error) {
	waitErr := c.limiter.Wait(ctx)
	if waitErr != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", waitErr)
	}

	status, body, err := fetch(ctx, c.http, url)
	if err != nil {
		c.stats.RecordError(c.api, transportErrorCode(err))

		return 0, nil, err
	}

	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		c.stats.RecordSuccess(c.api)
	} else {
		c.stats.RecordError(c.api, strconv.Itoa(status))
	}

	return status, body, nil
}

func fetch(ctx context.Context, client *http.Client, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s: %w", url, err)
	}

	return resp.StatusCode, body, nil
}

// gerritMagicPrefix guards Gerrit JSON responses against XSSI.
const gerritMagicPrefix = ")]}'"

// decodeGerrit strips the magic prefix and decodes the remaining JSON.
func decodeGerrit(body []byte, out any) error {
	body = bytes.TrimPrefix(bytes.TrimSpace(body), []byte(gerritMagicPrefix))

	return json.Unmarshal(bytes.TrimSpace(body), out)
}
