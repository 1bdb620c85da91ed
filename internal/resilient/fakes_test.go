package resilient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeSession is a scripted Session. Reset brings it back to life unless
// resetFailures says otherwise.
type fakeSession struct {
	mu            sync.Mutex
	alive         bool
	probeErrors   int // next N probes fail with an error
	resetFailures int // next N resets fail
	navFailures   int // next N baseline navigations fail
	probes        int
	resets        int
	navigations   int
	atBaseline    bool
}

func newFakeSession(alive bool) *fakeSession {
	return &fakeSession{alive: alive, atBaseline: alive}
}

func (s *fakeSession) IsAlive(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if s.probeErrors > 0 {
		s.probeErrors--
		return false, errors.New("probe: connection refused")
	}
	return s.alive, nil
}

func (s *fakeSession) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if s.resetFailures > 0 {
		s.resetFailures--
		return errors.New("reset: browser did not start")
	}
	s.alive = true
	s.atBaseline = false
	return nil
}

func (s *fakeSession) NavigateToBaseline(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations++
	if s.navFailures > 0 {
		s.navFailures--
		return errors.New("navigate: timeout")
	}
	s.atBaseline = true
	return nil
}

func (s *fakeSession) kill() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

func (s *fakeSession) usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive && s.atBaseline
}

// settlingSession adds condition-based settling to fakeSession.
type settlingSession struct {
	*fakeSession
	settles  int
	timeouts []time.Duration
}

func (s *settlingSession) WaitUntilSettled(_ context.Context, timeout time.Duration) error {
	s.settles++
	s.timeouts = append(s.timeouts, timeout)
	return nil
}

type fakeSink struct {
	tags []string
	err  error
}

func (s *fakeSink) Capture(_ context.Context, tag string) error {
	s.tags = append(s.tags, tag)
	return s.err
}

// recordingClock records every wait and returns immediately.
type recordingClock struct {
	sleeps []time.Duration
	// onSleep runs before a wait returns; used to cancel mid-wait.
	onSleep func(n int)
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	return ctx.Err()
}

type countingObserver struct {
	started, failed, recoveries, recoveryFailures, diagFailures, finished int
	lastAttempts                                                       int
	lastErr                                                            error
}

func (o *countingObserver) AttemptStarted(string, int)       { o.started++ }
func (o *countingObserver) AttemptFailed(string, int, error) { o.failed++ }
func (o *countingObserver) RecoveryFinished(_ string, err error) {
	o.recoveries++
	if err != nil {
		o.recoveryFailures++
	}
}
func (o *countingObserver) DiagnosticFailed(string, error) { o.diagFailures++ }
func (o *countingObserver) CallFinished(_ string, attempts int, err error) {
	o.finished++
	o.lastAttempts = attempts
	o.lastErr = err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(session Session, clock Clock, opts ...Option) *Executor {
	base := []Option{
		WithClock(clock),
		WithLogger(quietLogger()),
		WithBaseDelay(time.Second),
		WithSettleDelay(0),
	}
	return New(session, append(base, opts...)...)
}
