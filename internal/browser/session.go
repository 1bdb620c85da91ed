// Package browser owns the Playwright session the suite drives.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/storefront-e2e/internal/config"
	"github.com/kuitang/storefront-e2e/internal/obs"
	"github.com/kuitang/storefront-e2e/internal/ratelimit"
	"github.com/kuitang/storefront-e2e/internal/resilient"
)

// ErrUnavailable means Playwright or its browsers could not be started.
var ErrUnavailable = errors.New("browser: playwright unavailable")

// Options configure a Session.
type Options struct {
	BaseURL           string
	Browser           string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	DefaultTimeout    time.Duration
	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration
	Pacer             *ratelimit.Pacer
}

// OptionsFromConfig maps suite configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		Browser:           cfg.Browser,
		Headless:          cfg.Headless,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		DefaultTimeout:    cfg.DefaultTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		ProbeTimeout:      cfg.ProbeTimeout,
		Pacer: ratelimit.NewPacer(ratelimit.Config{
			RPS:   cfg.NavigationRPS,
			Burst: cfg.NavigationBurst,
		}),
	}
}

// Session is a single browser, context and page. Reset swaps all three
// under mu so Page never returns a half-built handle.
type Session struct {
	opts Options
	pw   *playwright.Playwright
	log  *slog.Logger

	mu      sync.RWMutex
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

var (
	_ resilient.Session = (*Session)(nil)
	_ resilient.Settler = (*Session)(nil)
)

// Launch starts Playwright and opens the first page. Errors starting the
// driver or the browser wrap ErrUnavailable.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s := &Session{opts: opts, pw: pw, log: obs.From(ctx).With("pkg", "browser")}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.launchBrowserLocked(); err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.openPageLocked(); err != nil {
		_ = s.browser.Close()
		_ = pw.Stop()
		return nil, err
	}
	s.log.Info("browser launched", "browser", opts.Browser, "headless", opts.Headless, "base_url", opts.BaseURL)
	return s, nil
}

func (s *Session) browserType() playwright.BrowserType {
	switch s.opts.Browser {
	case "firefox":
		return s.pw.Firefox
	case "webkit":
		return s.pw.WebKit
	default:
		return s.pw.Chromium
	}
}

func (s *Session) launchBrowserLocked() error {
	browser, err := s.browserType().Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
	})
	if err != nil {
		return fmt.Errorf("launch %s: %w", s.opts.Browser, err)
	}
	s.browser = browser
	return nil
}

func (s *Session) openPageLocked() error {
	options := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if s.opts.ViewportWidth > 0 && s.opts.ViewportHeight > 0 {
		options.Viewport = &playwright.Size{Width: s.opts.ViewportWidth, Height: s.opts.ViewportHeight}
	}
	bctx, err := s.browser.NewContext(options)
	if err != nil {
		return fmt.Errorf("new browser context: %w", err)
	}
	if s.opts.DefaultTimeout > 0 {
		bctx.SetDefaultTimeout(ms(s.opts.DefaultTimeout))
	}
	if s.opts.NavigationTimeout > 0 {
		bctx.SetDefaultNavigationTimeout(ms(s.opts.NavigationTimeout))
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return fmt.Errorf("new page: %w", err)
	}
	s.context = bctx
	s.page = page
	return nil
}

// Page returns the current page. It changes after Reset.
func (s *Session) Page() playwright.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// BaseURL returns the storefront root all relative paths resolve against.
func (s *Session) BaseURL() string { return s.opts.BaseURL }

// IsAlive reads the page title within ProbeTimeout.
func (s *Session) IsAlive(ctx context.Context) (bool, error) {
	s.mu.RLock()
	browser, page := s.browser, s.page
	s.mu.RUnlock()

	if browser == nil || page == nil || !browser.IsConnected() || page.IsClosed() {
		return false, nil
	}

	timeout := s.opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		title string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		title, err := page.Title()
		done <- result{title: title, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, fmt.Errorf("read title: %w", r.err)
		}
		return true, nil
	case <-probeCtx.Done():
		return false, fmt.Errorf("read title: %w", probeCtx.Err())
	}
}

// Reset discards the current context and opens a fresh one, relaunching
// the browser when it has disconnected.
func (s *Session) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context != nil {
		_ = s.context.Close()
		s.context, s.page = nil, nil
	}
	if s.browser == nil || !s.browser.IsConnected() {
		if s.browser != nil {
			_ = s.browser.Close()
		}
		s.log.Warn("browser disconnected, relaunching")
		if err := s.launchBrowserLocked(); err != nil {
			return err
		}
	}
	if err := s.openPageLocked(); err != nil {
		return err
	}
	s.log.Info("browser session reset")
	return nil
}

// NavigateToBaseline opens the storefront home page and waits for load.
func (s *Session) NavigateToBaseline(ctx context.Context) error {
	return s.navigate(ctx, s.opts.BaseURL, playwright.WaitUntilStateLoad)
}

// Goto opens path relative to BaseURL and waits for DOMContentLoaded.
func (s *Session) Goto(ctx context.Context, path string) error {
	return s.navigate(ctx, ResolveURL(s.opts.BaseURL, path), playwright.WaitUntilStateDomcontentloaded)
}

func (s *Session) navigate(ctx context.Context, url string, waitUntil *playwright.WaitUntilState) error {
	if err := s.opts.Pacer.Wait(ctx); err != nil {
		return err
	}
	page := s.Page()
	if page == nil {
		return errors.New("browser: no open page")
	}
	options := playwright.PageGotoOptions{WaitUntil: waitUntil}
	if s.opts.NavigationTimeout > 0 {
		options.Timeout = playwright.Float(ms(s.opts.NavigationTimeout))
	}
	resp, err := page.Goto(url, options)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if resp != nil && resp.Status() >= 500 {
		return fmt.Errorf("navigate to %s: server answered %d", url, resp.Status())
	}
	s.log.Debug("navigated", "url", url)
	return nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := s.Page()
	if page == nil {
		return nil, errors.New("browser: no open page")
	}
	return page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

// WaitUntilSettled waits for the network to go idle.
func (s *Session) WaitUntilSettled(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page := s.Page()
	if page == nil {
		return errors.New("browser: no open page")
	}
	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(timeout)),
	})
}

// ClearCookies empties the cookie jar, which also empties the guest cart.
func (s *Session) ClearCookies() error {
	s.mu.RLock()
	bctx := s.context
	s.mu.RUnlock()
	if bctx == nil {
		return nil
	}
	return bctx.ClearCookies()
}

// Close shuts down the page, browser and driver.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []error
	if s.context != nil {
		all = append(all, s.context.Close())
		s.context, s.page = nil, nil
	}
	if s.browser != nil {
		all = append(all, s.browser.Close())
		s.browser = nil
	}
	if s.pw != nil {
		all = append(all, s.pw.Stop())
		s.pw = nil
	}
	return errors.Join(all...)
}

// ResolveURL joins path onto base. Absolute URLs pass through.
func ResolveURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" || path == "/" {
		return strings.TrimSuffix(base, "/") + "/"
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
