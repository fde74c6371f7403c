package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/user/product-crawler/internal/extract"
	"github.com/user/product-crawler/internal/proxy"
)

// ErrFetch is matched by every *FetchError.
var ErrFetch = errors.New("fetch failed")

// FetchError describes a page that could not be fetched. StatusCode is
// zero for transport failures and timeouts.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Fetcher retrieves and parses one page. Implementations apply their own
// timeout and retry policy.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*extract.Document, error)
}

// FetcherConfig tunes HTTPFetcher.
type FetcherConfig struct {
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error or a
	// 429/5xx response.
	Retries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
	// RateLimit caps requests per second across all workers. Zero disables it.
	RateLimit    float64
	MaxBodyBytes int64
}

// DefaultFetcherConfig returns the settings used when nothing is configured.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      30 * time.Second,
		Retries:      2,
		Backoff:      500 * time.Millisecond,
		MaxBodyBytes: 10 << 20,
	}
}

// HTTPFetcher fetches pages over HTTP, rotating user agents and proxies.
type HTTPFetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	proxies *proxy.Manager
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPFetcher builds a fetcher whose transport routes through pm.
func NewHTTPFetcher(cfg FetcherConfig, pm *proxy.Manager, logger *zap.Logger) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = pm.Proxy
	f := &HTTPFetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		proxies: pm,
		logger:  logger.With(zap.String("component", "fetcher")),
	}
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*extract.Document, error) {
	backoff := f.cfg.Backoff
	for attempt := 0; ; attempt++ {
		doc, retryable, err := f.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		if !retryable || attempt >= f.cfg.Retries {
			return nil, err
		}
		f.logger.Debug("retrying fetch", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, &FetchError{URL: url, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*extract.Document, bool, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, false, &FetchError{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.proxies.GetUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	}
	// Decode to UTF-8 from the Content-Type header, a <meta> charset or
	// sniffed content.
	body, err = charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, false, &FetchError{URL: url, Err: fmt.Errorf("decode body: %w", err)}
	}
	doc, err := extract.Parse(body, resp.Request.URL.String())
	if err != nil {
		return nil, false, &FetchError{URL: url, Err: err}
	}
	return doc, false, nil
}
