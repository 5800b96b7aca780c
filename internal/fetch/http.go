package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/Alexander-D-Karpov/streamplayer/internal/config"
)

type HTTPOptions struct {
	BaseURL           string
	Timeout           time.Duration
	Retries           int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	UserAgent         string
	RequestsPerSecond int
	BurstSize         int
	Debug             bool
}

// HTTPTransport GETs resources relative to a base URL. Keys that already are
// absolute http(s) URLs are fetched as they are.
type HTTPTransport struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	userAgent  string
	debug      bool
}

func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.HTTPClient.Timeout = opts.Timeout
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = nil

	if opts.Debug {
		retryClient.Logger = &debugLogger{}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.BurstSize
	if burst < 1 {
		burst = 1
	}

	t := &HTTPTransport{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: retryClient,
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  opts.UserAgent,
		debug:      opts.Debug,
	}
	t.debugLog("HTTP transport initialized - Base URL: %s", t.baseURL)
	return t
}

func NewHTTPTransportFromConfig(cfg *config.Config) *HTTPTransport {
	return NewHTTPTransport(HTTPOptions{
		BaseURL:           cfg.Fetch.BaseURL,
		Timeout:           time.Duration(cfg.Fetch.Timeout) * time.Second,
		Retries:           cfg.Fetch.Retries,
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.Fetch.RateLimit.BurstSize,
		Debug:             cfg.Debug,
	})
}

type debugLogger struct{}

func (d *debugLogger) Printf(format string, args ...interface{}) {
	log.Printf("[HTTP] "+format, args...)
}

func (t *HTTPTransport) debugLog(format string, args ...interface{}) {
	if t.debug {
		log.Printf("[FETCH] "+format, args...)
	}
}

// IsURL reports whether key is an absolute http(s) URL.
func IsURL(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}

// URL maps a resource key to the address it is fetched from.
func (t *HTTPTransport) URL(key string) (string, error) {
	if IsURL(key) {
		return key, nil
	}
	if t.baseURL == "" {
		return "", fmt.Errorf("%w: no base URL for %s", ErrNotFound, key)
	}

	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return t.baseURL + "/" + strings.Join(parts, "/"), nil
}

func (t *HTTPTransport) Fetch(ctx context.Context, key string) ([]byte, error) {
	startTime := time.Now()

	fullURL, err := t.URL(key)
	if err != nil {
		return nil, err
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "*/*")

	t.debugLog("GET %s", fullURL)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.debugLog("Failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	t.debugLog("GET %s - %d bytes in %v", fullURL, len(body), time.Since(startTime))
	return body, nil
}
