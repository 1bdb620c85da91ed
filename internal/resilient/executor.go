// Package resilient runs named browser actions with session health checks,
// recovery, bounded linear-backoff retries and best-effort diagnostics.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/logutil"
	"github.com/kuitang/storefront-e2e/internal/obs"
)

const (
	DefaultMaxRetries    = 3
	DefaultBaseDelay     = 3 * time.Second
	DefaultSettleDelay   = 2 * time.Second
	DefaultSettleTimeout = 10 * time.Second
)

// Action is one unit of work against the session. It may run more than
// once, so it must be safe to repeat after a partial failure.
type Action[T any] func(ctx context.Context) (T, error)

// Executor wraps actions against a single session. It holds no per-call
// state; callers must not run two calls on the same session at once.
type Executor struct {
	session       Session
	sink          Sink
	clock         Clock
	observer      Observer
	logger        *slog.Logger
	maxRetries    int
	baseDelay     time.Duration
	settleDelay   time.Duration
	settleTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

func WithSink(sink Sink) Option { return func(e *Executor) { e.sink = sink } }

func WithClock(clock Clock) Option { return func(e *Executor) { e.clock = clock } }

func WithObserver(observer Observer) Option { return func(e *Executor) { e.observer = observer } }

// WithLogger replaces the context-derived logger.
func WithLogger(logger *slog.Logger) Option { return func(e *Executor) { e.logger = logger } }

// WithDefaultMaxRetries sets the attempt budget used when a call does not pass WithMaxRetries.
func WithDefaultMaxRetries(n int) Option { return func(e *Executor) { e.maxRetries = n } }

// WithBaseDelay sets the backoff unit. The wait after failed attempt n is n*d.
func WithBaseDelay(d time.Duration) Option { return func(e *Executor) { e.baseDelay = d } }

// WithSettleDelay sets the fixed pause used when the session is not a Settler.
func WithSettleDelay(d time.Duration) Option { return func(e *Executor) { e.settleDelay = d } }

// WithSettleTimeout bounds Settler waits.
func WithSettleTimeout(d time.Duration) Option { return func(e *Executor) { e.settleTimeout = d } }

// New creates an executor bound to session.
func New(session Session, opts ...Option) *Executor {
	e := &Executor{
		session:       session,
		clock:         SystemClock{},
		observer:      NopObserver{},
		maxRetries:    DefaultMaxRetries,
		baseDelay:     DefaultBaseDelay,
		settleDelay:   DefaultSettleDelay,
		settleTimeout: DefaultSettleTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	return e
}

type callConfig struct {
	maxRetries int
}

// CallOption configures a single call.
type CallOption func(*callConfig)

// WithMaxRetries sets the attempt budget for one call. Values below 1 mean 1.
func WithMaxRetries(n int) CallOption {
	return func(c *callConfig) { c.maxRetries = n }
}

// Do runs an action that produces no value.
func (e *Executor) Do(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...CallOption) error {
	_, err := Execute(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// Execute runs action until it succeeds or the attempt budget is spent.
// The only errors returned are *ExhaustedError and, when ctx ends during a
// wait, a canceled error wrapping the last failure.
func Execute[T any](ctx context.Context, e *Executor, name string, action Action[T], opts ...CallOption) (T, error) {
	var zero T
	call := callConfig{maxRetries: e.maxRetries}
	for _, opt := range opts {
		opt(&call)
	}
	if call.maxRetries < 1 {
		call.maxRetries = 1
	}

	ctx = obs.WithCorrelation(ctx, obs.Correlation{Action: name})
	c := &runner{e: e, name: name, log: e.loggerFor(ctx)}

	var lastErr error
	attempt := 0
	for attempt < call.maxRetries {
		if err := ctx.Err(); err != nil {
			return zero, c.canceled(err, attempt, lastErr)
		}

		err := c.ensureSession(ctx, "before_attempt")
		if err == nil {
			e.observer.AttemptStarted(name, attempt+1)
			c.log.Info("action started", "attempt", attempt+1, "max_retries", call.maxRetries)
			value, actionErr := action(ctx)
			if actionErr == nil {
				c.log.Info("action completed", "attempt", attempt+1)
				e.observer.CallFinished(name, attempt+1, nil)
				return value, nil
			}
			err = &ActionError{Action: name, Attempt: attempt + 1, Err: actionErr}
		}

		attempt++
		lastErr = err
		e.observer.AttemptFailed(name, attempt, err)
		c.log.Warn("action attempt failed", "attempt", attempt, "max_retries", call.maxRetries, "error", err)

		c.captureDiagnostics(ctx, attempt)

		if attempt >= call.maxRetries {
			exhausted := &ExhaustedError{Action: name, Attempts: attempt, Err: err}
			c.log.Error("action exhausted retries", "attempts", attempt, "error", err)
			e.observer.CallFinished(name, attempt, exhausted)
			return zero, exhausted
		}

		delay := e.baseDelay * time.Duration(attempt)
		c.log.Info("waiting before retry", "next_attempt", attempt+1, "delay_ms", delay.Milliseconds())
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return zero, c.canceled(err, attempt, lastErr)
		}

		// A failure here is picked up again by the next pre-attempt probe.
		if err := c.ensureSession(ctx, "after_backoff"); err != nil {
			c.log.Warn("recovery after backoff failed", "error", err)
		}
	}
	// Unreachable: the loop returns once attempt reaches maxRetries.
	return zero, &ExhaustedError{Action: name, Attempts: attempt, Err: lastErr}
}

func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger.With("action", obs.CorrelationFromContext(ctx).Action)
	}
	return obs.From(ctx).With("pkg", "resilient")
}

// DiagnosticTag names the artifact for a failed attempt.
func DiagnosticTag(action string, attempt int) string {
	return fmt.Sprintf("error-%s-attempt-%d", logutil.Slug(action), attempt)
}

// runner carries the state of one Execute call.
type runner struct {
	e    *Executor
	name string
	log  *slog.Logger
}

// ensureSession probes and, when the session is not usable, recovers it.
func (c *runner) ensureSession(ctx context.Context, phase string) error {
	liveness := Probe(ctx, c.e.session)
	if liveness.Valid() {
		return nil
	}
	if liveness.Err != nil {
		c.log.Warn("liveness probe failed", "phase", phase, "error", liveness.Err)
	}
	c.log.Info("session invalid, recovering", "phase", phase, "liveness", liveness.State.String())
	err := c.recover(ctx)
	c.e.observer.RecoveryFinished(c.name, err)
	return err
}

func (c *runner) recover(ctx context.Context) error {
	message := "cannot recover browser to perform " + c.name
	if err := c.e.session.Reset(ctx); err != nil {
		return errs.Wrap(errs.RecoveryFailed, message, fmt.Errorf("reset: %w", err))
	}
	if err := c.e.session.NavigateToBaseline(ctx); err != nil {
		return errs.Wrap(errs.RecoveryFailed, message, fmt.Errorf("baseline navigation: %w", err))
	}
	c.settle(ctx, "recovery")
	c.log.Info("session recovered")
	return nil
}

// captureDiagnostics never fails the call.
func (c *runner) captureDiagnostics(ctx context.Context, attempt int) {
	if c.e.sink == nil {
		return
	}
	liveness := Probe(ctx, c.e.session)
	if !liveness.Valid() {
		c.log.Info("skipping diagnostics, session not alive", "attempt", attempt, "liveness", liveness.State.String())
		return
	}
	tag := DiagnosticTag(c.name, attempt)
	if err := c.e.sink.Capture(ctx, tag); err != nil {
		c.log.Warn("could not capture diagnostics", "tag", tag, "error", err)
		c.e.observer.DiagnosticFailed(c.name, err)
		return
	}
	c.log.Info("diagnostics captured", "tag", tag)
	c.settle(ctx, "diagnostics")
}

func (c *runner) settle(ctx context.Context, phase string) {
	if settler, ok := c.e.session.(Settler); ok {
		if err := settler.WaitUntilSettled(ctx, c.e.settleTimeout); err != nil {
			c.log.Warn("settle wait failed", "phase", phase, "error", err)
		}
		return
	}
	if c.e.settleDelay <= 0 {
		return
	}
	if err := c.e.clock.Sleep(ctx, c.e.settleDelay); err != nil {
		c.log.Warn("settle pause interrupted", "phase", phase, "error", err)
	}
}

func (c *runner) canceled(ctxErr error, attempts int, lastErr error) error {
	c.log.Warn("action canceled", "attempts", attempts, "error", ctxErr)
	cause := ctxErr
	if lastErr != nil {
		cause = errors.Join(ctxErr, lastErr)
	}
	err := errs.Wrap(errs.Canceled, fmt.Sprintf("%s canceled after %d attempts", c.name, attempts), cause)
	c.e.observer.CallFinished(c.name, attempts, err)
	return err
}
