// Package fetch implements the diagnostic page fetcher using gocolly.
//
// Every outcome, success or failure, carries a complete diagnostics bundle:
// final status, content type, byte count, final URL, redirect count and
// chain, and the last Location header seen. Downstream error reporting
// surfaces this bundle to operators.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/refhq/sourcescout/internal/policy/ratelimit"
	"github.com/refhq/sourcescout/internal/scout"
)

// Defaults applied when Config fields are zero.
const (
	DefaultTimeout      = 12 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB, larger bodies are truncated
	DefaultMinHTMLBytes = 2048
	DefaultUserAgent    = "sourcescout/1.0 (+https://github.com/refhq/sourcescout)"
)

var errTooManyRedirects = errors.New("redirect hop cap exceeded")

// Config controls collector behavior. PerHostRPS <= 0 turns off pacing.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRedirects  int
	MaxBodyBytes  int
	MinHTMLBytes  int
	RespectRobots bool
	PerHostRPS    float64
	PerHostBurst  int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MinHTMLBytes == 0 {
		c.MinHTMLBytes = DefaultMinHTMLBytes
	}
	return c
}

// Fetcher implements scout.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
}

// New builds a Fetcher with a pooled transport shared across fetches.
func New(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.MaxBodySize = cfg.MaxBodyBytes

	transport := newHTTPTransport()
	c.WithTransport(transport)

	var limiter *ratelimit.Limiter
	if cfg.PerHostRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.PerHostRPS, Burst: cfg.PerHostBurst})
	}

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		limiter:       limiter,
	}
}

// Fetch executes a single bounded GET and classifies every non-success
// outcome into the closed sweep error taxonomy.
func (f *Fetcher) Fetch(ctx context.Context, request scout.FetchRequest) (scout.FetchResult, error) {
	var (
		mu       sync.Mutex
		diag     = scout.Diagnostics{FinalURL: request.URL}
		body     []byte
		fetchErr error
		hopCap   bool
	)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, request.URL); err != nil {
			return scout.FetchResult{}, scout.WrapFetchFailed(diag, err)
		}
	}

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)

	// Redirects are followed hop by hop so the chain can be recorded and the
	// cap enforced; the underlying client never silently swallows a hop.
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		mu.Lock()
		defer mu.Unlock()
		diag.RedirectChain = append(diag.RedirectChain, req.URL.String())
		diag.RedirectCount = len(diag.RedirectChain)
		diag.LastLocation = req.URL.String()
		if len(via) > f.cfg.MaxRedirects {
			hopCap = true
			return errTooManyRedirects
		}
		return nil
	})

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		diag.StatusCode = r.StatusCode
		diag.ContentType = r.Headers.Get("Content-Type")
		diag.ByteCount = len(r.Body)
		diag.FinalURL = r.Request.URL.String()
		if loc := r.Headers.Get("Location"); loc != "" {
			diag.LastLocation = loc
		}
		body = append([]byte(nil), r.Body...)
	})

	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if r != nil {
			if r.StatusCode != 0 {
				diag.StatusCode = r.StatusCode
			}
			if r.Request != nil && r.Request.URL != nil {
				diag.FinalURL = r.Request.URL.String()
			}
			diag.ContentType = r.Headers.Get("Content-Type")
			diag.ByteCount = len(r.Body)
			if loc := r.Headers.Get("Location"); loc != "" {
				diag.LastLocation = loc
			}
		}
		fetchErr = err
	})

	if err := runCollector(ctx, collector, request.URL); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return scout.FetchResult{}, classifyRunError(err, diag, hopCap)
	}

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil {
		return scout.FetchResult{}, classifyRunError(fetchErr, diag, hopCap)
	}
	return classifyPayload(body, diag, f.cfg.MinHTMLBytes)
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func classifyRunError(err error, diag scout.Diagnostics, hopCap bool) error {
	if hopCap || errors.Is(err, errTooManyRedirects) || strings.Contains(err.Error(), errTooManyRedirects.Error()) {
		return scout.NewSweepError(scout.KindRedirectBlocked, diag,
			fmt.Sprintf("gave up after %d redirect hops", diag.RedirectCount))
	}
	if diag.StatusCode >= 300 && diag.StatusCode < 400 {
		// Terminal 3xx means the client could not follow it: no Location.
		return scout.NewSweepError(scout.KindRedirectBlocked, diag, "redirect response missing Location header")
	}
	if diag.StatusCode != 0 && (diag.StatusCode < 200 || diag.StatusCode >= 300) {
		return scout.NewSweepError(scout.KindHTTPError, diag, http.StatusText(diag.StatusCode))
	}
	return scout.WrapFetchFailed(diag, err)
}

func classifyPayload(body []byte, diag scout.Diagnostics, minBytes int) (scout.FetchResult, error) {
	if diag.StatusCode >= 300 && diag.StatusCode < 400 {
		return scout.FetchResult{}, scout.NewSweepError(scout.KindRedirectBlocked, diag,
			"redirect response missing Location header")
	}
	if diag.StatusCode < 200 || diag.StatusCode >= 300 {
		return scout.FetchResult{}, scout.NewSweepError(scout.KindHTTPError, diag, http.StatusText(diag.StatusCode))
	}

	mediaType := diag.ContentType
	if parsed, _, err := mime.ParseMediaType(diag.ContentType); err == nil {
		mediaType = parsed
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "application/json":
	default:
		return scout.FetchResult{}, scout.NewSweepError(scout.KindNonHTMLResponse, diag,
			fmt.Sprintf("content type %q is not html or json", diag.ContentType))
	}

	if len(body) < minBytes {
		return scout.FetchResult{}, scout.NewSweepError(scout.KindEmptyHTML, diag,
			fmt.Sprintf("body of %d bytes is below the %d byte floor", len(body), minBytes))
	}

	return scout.FetchResult{HTML: body, Diagnostics: diag}, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
