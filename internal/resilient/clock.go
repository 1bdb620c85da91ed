package resilient

import (
	"context"
	"time"
)

// Clock performs the executor's waits.
type Clock interface {
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock sleeps on real timers.
type SystemClock struct{}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observer receives executor events. Implementations must be cheap and
// must not block; they run inline with the retry loop.
type Observer interface {
	AttemptStarted(action string, attempt int)
	AttemptFailed(action string, attempt int, err error)
	RecoveryFinished(action string, err error)
	DiagnosticFailed(action string, err error)
	CallFinished(action string, attempts int, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) AttemptStarted(string, int)       {}
func (NopObserver) AttemptFailed(string, int, error) {}
func (NopObserver) RecoveryFinished(string, error)   {}
func (NopObserver) DiagnosticFailed(string, error)   {}
func (NopObserver) CallFinished(string, int, error)  {}
