// Package pages holds the storefront page objects: selector tables plus the
// actions the suite performs on each page.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/storefront-e2e/internal/logutil"
	"github.com/kuitang/storefront-e2e/internal/obs"
	"github.com/kuitang/storefront-e2e/internal/resilient"
)

const (
	// DefaultElementTimeout bounds every element wait.
	DefaultElementTimeout = 10 * time.Second
	// SecondClickPause is the pause before retrying a failed click.
	SecondClickPause = 2 * time.Second

	pollInterval   = 100 * time.Millisecond
	contentPreview = 500
)

// Driver is the browser capability page objects need.
type Driver interface {
	// Page returns the live page; it may change after a session reset.
	Page() playwright.Page
	// Goto opens path relative to the storefront base URL.
	Goto(ctx context.Context, path string) error
}

// Page is the base page object.
type Page struct {
	driver  Driver
	clock   resilient.Clock
	timeout time.Duration
	log     *slog.Logger
}

// NewPage binds a base page object to driver.
func NewPage(driver Driver) Page {
	return Page{
		driver:  driver,
		clock:   resilient.SystemClock{},
		timeout: DefaultElementTimeout,
		log:     obs.Pkg("pages"),
	}
}

// WithTimeout returns a copy that waits up to d for elements.
func (p Page) WithTimeout(d time.Duration) Page {
	p.timeout = d
	return p
}

// WithClock returns a copy that pauses on clock.
func (p Page) WithClock(clock resilient.Clock) Page {
	p.clock = clock
	return p
}

// Locator resolves selector on the current page.
func (p Page) Locator(selector string) playwright.Locator {
	return p.driver.Page().Locator(selector)
}

// Open navigates to path.
func (p Page) Open(ctx context.Context, path string) error {
	p.log.Info("opening page", "path", path)
	return p.driver.Goto(ctx, path)
}

// WaitForDisplayed waits until the first match of loc is visible.
func (p Page) WaitForDisplayed(ctx context.Context, loc playwright.Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		p.logPageState("element not displayed", err)
		return fmt.Errorf("wait for element displayed: %w", err)
	}
	return nil
}

// WaitForClickable waits until loc is visible and enabled.
func (p Page) WaitForClickable(ctx context.Context, loc playwright.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	if err := p.WaitForDisplayed(ctx, loc, timeout); err != nil {
		return err
	}
	err := poll(ctx, timeout, func() (bool, error) {
		return loc.First().IsEnabled()
	})
	if err != nil {
		p.logPageState("element not clickable", err)
		return fmt.Errorf("wait for element clickable: %w", err)
	}
	return nil
}

// Click clicks loc once it is clickable, retrying a single time after a pause.
func (p Page) Click(ctx context.Context, loc playwright.Locator) error {
	err := p.WaitForClickable(ctx, loc, 0)
	if err == nil {
		err = loc.First().Click()
	}
	if err == nil {
		return nil
	}
	p.log.Warn("click failed, trying again after a pause", "error", err)
	if err := p.clock.Sleep(ctx, SecondClickPause); err != nil {
		return err
	}
	if err := loc.First().Click(); err != nil {
		p.logPageState("second click failed", err)
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// SetValue clears loc and types value. field names the input in logs;
// sensitive fields are redacted.
func (p Page) SetValue(ctx context.Context, field string, loc playwright.Locator, value string) error {
	if err := p.WaitForDisplayed(ctx, loc, 0); err != nil {
		return err
	}
	input := loc.First()
	if err := input.Clear(); err != nil {
		return fmt.Errorf("clear %s: %w", field, err)
	}
	if err := input.Fill(value); err != nil {
		return fmt.Errorf("fill %s: %w", field, err)
	}
	p.log.Debug("value set", "field", field, "value", logutil.RedactValue(field, value))
	return nil
}

// GetText returns the trimmed visible text of loc.
func (p Page) GetText(ctx context.Context, loc playwright.Locator) (string, error) {
	if err := p.WaitForDisplayed(ctx, loc, 0); err != nil {
		return "", err
	}
	text, err := loc.First().InnerText()
	if err != nil {
		p.logPageState("could not read text", err)
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Exists reports whether loc matches anything. Lookup errors count as absent.
func (p Page) Exists(loc playwright.Locator) bool {
	n, err := loc.Count()
	return err == nil && n > 0
}

// WaitForPageToLoad waits for document.readyState to reach "complete".
func (p Page) WaitForPageToLoad(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	_, err := p.driver.Page().WaitForFunction(`() => document.readyState === 'complete'`, nil, playwright.PageWaitForFunctionOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("page did not finish loading in time: %w", err)
	}
	return nil
}

// texts returns the trimmed inner text of every match of loc.
func texts(loc playwright.Locator) ([]string, error) {
	all, err := loc.All()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, item := range all {
		text, err := item.InnerText()
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out, nil
}

func (p Page) logPageState(msg string, err error) {
	page := p.driver.Page()
	if page == nil {
		p.log.Warn(msg, "error", err)
		return
	}
	title, _ := page.Title()
	content, _ := page.Content()
	p.log.Warn(msg,
		"error", err,
		"url", page.URL(),
		"title", title,
		"content_preview", logutil.TruncateForLog(content, contentPreview),
	)
}

func poll(ctx context.Context, timeout time.Duration, cond func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := cond()
		if err == nil && ok {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("condition not met within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
