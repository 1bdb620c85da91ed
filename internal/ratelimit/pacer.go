// Package ratelimit paces browser navigations against the target storefront.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Config defines the pacing configuration.
type Config struct {
	RPS   float64 // Navigations per second
	Burst int     // Navigations allowed back to back
}

// DefaultConfig keeps a single suite polite towards a shared public demo store.
var DefaultConfig = Config{
	RPS:   2,
	Burst: 4,
}

// Pacer delays callers so navigations stay within the configured rate.
// A nil *Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer. Non-positive RPS disables pacing.
func NewPacer(config Config) *Pacer {
	if config.RPS <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(config.RPS), burst)}
}

// Wait blocks until the next navigation is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigation pacing: %w", err)
	}
	return nil
}

// Allow reports whether a navigation may happen right now without waiting.
func (p *Pacer) Allow() bool {
	if p == nil || p.limiter == nil {
		return true
	}
	return p.limiter.Allow()
}
