package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BoxCatTeam/CatPanelBackend/internal/infra/buildinfo"
)

// ErrTooLarge is returned when a response body exceeds Config.MaxBodyBytes.
var ErrTooLarge = errors.New("fetch: response body too large")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}

// Config configures an HTTPFetcher.
type Config struct {
	// Timeout bounds one request including the body read. Zero disables it.
	Timeout time.Duration
	// RateLimit is requests per second per host. Zero disables limiting.
	RateLimit float64
	// Burst is the token bucket size per host.
	Burst int
	// MaxBodyBytes caps the response size. Zero means unlimited.
	MaxBodyBytes int64
	// UserAgent defaults to buildinfo.UserAgent().
	UserAgent string
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RateLimit:    10,
		Burst:        20,
		MaxBodyBytes: 32 << 20, // 32MB
	}
}

// HTTPFetcher implements the loader's Fetcher over net/http.
type HTTPFetcher struct {
	client    *http.Client
	limiters  *hostLimiters
	maxBody   int64
	userAgent string
}

// New creates a fetcher with its own http.Client.
func New(cfg Config) *HTTPFetcher {
	return NewWithClient(&http.Client{Timeout: cfg.Timeout}, cfg)
}

// NewWithClient creates a fetcher using client. cfg.Timeout is ignored;
// the client's own timeout applies.
func NewWithClient(client *http.Client, cfg Config) *HTTPFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}
	return &HTTPFetcher{
		client:    client,
		limiters:  newHostLimiters(cfg.RateLimit, cfg.Burst),
		maxBody:   cfg.MaxBodyBytes,
		userAgent: ua,
	}
}

// Fetch GETs u and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("fetch: scheme %q is not http(s)", u.Scheme)
	}

	if err := f.limiters.get(strings.ToLower(u.Host)).Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: rate limit: %w", u.Redacted(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var body io.Reader = resp.Body
	if f.maxBody > 0 {
		if resp.ContentLength > f.maxBody {
			return nil, fmt.Errorf("fetch %s: %w (%d bytes)", u.Redacted(), ErrTooLarge, resp.ContentLength)
		}
		body = io.LimitReader(resp.Body, f.maxBody+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", u.Redacted(), err)
	}
	if f.maxBody > 0 && int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), ErrTooLarge)
	}
	return data, nil
}
