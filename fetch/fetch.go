// Package fetch downloads remote blobs (attachments, avatars) with retries
// and a hard size ceiling.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

// RobustHTTPClient returns an HTTP client with general-purpose defaults
// around timeouts and retries. The returned client has the stdlib http.Client
// interface, but has Hashicorp retryablehttp logic internally.
//
// The client retries on connection errors, 5xx status (except 501), and 429
// Backoff responses (respecting the 'Retry-After' header), and logs
// intermediate failures at WARN level.
func RobustHTTPClient(logger *slog.Logger) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger.With("subsystem", "RobustHTTPClient")})
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}

// Client fetches blobs over HTTP.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		HTTP:      RobustHTTPClient(logger),
		UserAgent: "sentinel/" + versioninfo.Short(),
	}
}

// FetchBytes downloads url, returning at most maxBytes bytes. A response body
// larger than maxBytes is an error rather than a silent truncation; truncated
// image bytes would decode to garbage anyway. maxBytes <= 0 means no limit.
func (c *Client) FetchBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("constructing blob request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		blobDownloadCount.WithLabelValues("fail").Inc()
		return nil, fmt.Errorf("fetching blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		blobDownloadCount.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("fetching blob: unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		// read one byte past the cap to distinguish at-limit from over-limit
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		blobDownloadCount.WithLabelValues("fail").Inc()
		return nil, fmt.Errorf("reading blob body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		blobDownloadCount.WithLabelValues("oversize").Inc()
		return nil, fmt.Errorf("blob exceeds size limit of %d bytes", maxBytes)
	}

	blobDownloadCount.WithLabelValues("ok").Inc()
	blobDownloadDuration.Observe(time.Since(start).Seconds())
	return data, nil
}
