// Package fetch is the single choke-point for outbound requests. One
// Gate instance is shared by every extractor in a run: it owns the
// rate-limit clock, the HTTP client and the lazily launched headless
// browser, all guarded by one mutex.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"gridcrawl/internal/config"
	"gridcrawl/internal/errdefs"
)

// maxBodyBytes bounds how much of a response we will read.
const maxBodyBytes = 10 << 20

// Document is a fetched page: the raw text for marker checks plus the
// parsed node tree for extraction.
type Document struct {
	URL  string
	Raw  string
	Root *html.Node
}

// Gate coordinates all outbound fetches. The mutex covers the
// last-request clock and the browser handle; holding it across the
// rate-limit sleep is what serializes extractors.
type Gate struct {
	mu       sync.Mutex
	cfg      config.FetchConfig
	logger   *zap.Logger
	client   *http.Client
	rng      *rand.Rand
	last     time.Time
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// NewGate builds a gate from fetch configuration.
func NewGate(cfg config.FetchConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.Timeout()},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// rateLimit blocks until the randomized gap since the last gate-issued
// request has elapsed, then claims the clock. Must be called with the
// mutex held.
func (g *Gate) rateLimit(ctx context.Context) error {
	lo, hi := g.cfg.RateLimitRange()
	gap := lo
	if hi > lo {
		gap = lo + time.Duration(g.rng.Int63n(int64(hi-lo)))
	}
	elapsed := time.Since(g.last)
	if wait := gap - elapsed; wait > 0 {
		g.logger.Debug("rate limit wait", zap.Duration("wait", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.last = time.Now()
	return nil
}

// FetchStatic performs a rate-limited HTTP GET with retries and
// returns the parsed document.
func (g *Gate) FetchStatic(ctx context.Context, url string) (*Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, fmt.Errorf("fetch %s: gate is closed", url)
	}

	var doc *Document
	err := g.withRetry(ctx, func() error {
		if err := g.rateLimit(ctx); err != nil {
			return backoffPermanent(err)
		}
		d, err := g.getOnce(ctx, url)
		if err != nil {
			g.logger.Warn("static fetch attempt failed", zap.String("url", url), zap.Error(err))
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, &errdefs.TransportError{URL: url, Err: err}
	}
	return doc, nil
}

func (g *Gate) getOnce(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoffPermanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", g.cfg.UserAgentOrDefault())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return parseDocument(url, string(body))
}

// FetchRendered opens a tab in the shared headless browser, waits for
// the page load plus a bounded, non-fatal probe for a table element,
// and returns the final HTML.
func (g *Gate) FetchRendered(ctx context.Context, url string) (*Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, fmt.Errorf("fetch %s: gate is closed", url)
	}

	var doc *Document
	err := g.withRetry(ctx, func() error {
		if err := g.rateLimit(ctx); err != nil {
			return backoffPermanent(err)
		}
		d, err := g.renderOnce(ctx, url)
		if err != nil {
			g.logger.Warn("rendered fetch attempt failed", zap.String("url", url), zap.Error(err))
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, &errdefs.TransportError{URL: url, Err: err}
	}
	return doc, nil
}

func (g *Gate) renderOnce(ctx context.Context, url string) (*Document, error) {
	browser, err := g.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx).Timeout(g.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	// Readiness probe: dynamic content on this site always lands in a
	// table. Absence is non-fatal; some pages legitimately have none.
	if _, err := page.Timeout(g.cfg.TableWait()).Element("table"); err != nil {
		g.logger.Debug("table readiness probe expired", zap.String("url", url))
	}

	raw, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("capture html: %w", err)
	}
	return parseDocument(url, raw)
}

// ensureBrowser lazily launches the shared browser. Called with the
// mutex held.
func (g *Gate) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	if g.browser != nil {
		return g.browser, nil
	}

	l := launcher.New().Headless(true)
	if g.cfg.BrowserBin != "" {
		l = l.Bin(g.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	g.logger.Info("headless browser started")
	g.launcher = l
	g.browser = browser
	return browser, nil
}

// Close shuts the gate down. With interrupted=true the browser process
// is killed outright instead of being asked to shut down gracefully,
// so an interrupt never blocks on pending browser work.
func (g *Gate) Close(interrupted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true

	if g.browser == nil {
		return
	}
	if interrupted {
		if g.launcher != nil {
			g.launcher.Kill()
		}
		g.browser = nil
		g.launcher = nil
		g.logger.Info("browser killed on interrupt")
		return
	}
	if err := g.browser.Close(); err != nil {
		g.logger.Warn("browser close", zap.Error(err))
	}
	if g.launcher != nil {
		g.launcher.Cleanup()
	}
	g.browser = nil
	g.launcher = nil
}

func parseDocument(url, raw string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, backoffPermanent(fmt.Errorf("parse html: %w", err))
	}
	return &Document{URL: url, Raw: raw, Root: root}, nil
}
