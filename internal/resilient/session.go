package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/storefront-e2e/internal/errs"
)

// Session is a stateful handle to a remote automation session.
type Session interface {
	// IsAlive probes the session. An error means the probe itself failed.
	IsAlive(ctx context.Context) (bool, error)
	// Reset replaces the session with a fresh one.
	Reset(ctx context.Context) error
	// NavigateToBaseline returns the session to a known starting page.
	NavigateToBaseline(ctx context.Context) error
}

// Sink persists a diagnostic artifact for a failed attempt.
type Sink interface {
	Capture(ctx context.Context, tag string) error
}

// Settler is implemented by sessions that can wait for an observable
// readiness signal instead of a fixed pause.
type Settler interface {
	WaitUntilSettled(ctx context.Context, timeout time.Duration) error
}

// State is the outcome of a liveness probe.
type State int

const (
	Alive State = iota
	Dead
	ProbeError
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	case ProbeError:
		return "probe_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Liveness is a tagged probe result. Err is set only for ProbeError.
type Liveness struct {
	State State
	Err   error
}

// Valid reports whether the session can be used as is.
func (l Liveness) Valid() bool {
	return l.State == Alive
}

// Probe checks the session and classifies the result.
func Probe(ctx context.Context, session Session) Liveness {
	alive, err := session.IsAlive(ctx)
	if err != nil {
		return Liveness{
			State: ProbeError,
			Err:   errs.Wrap(errs.LivenessCheckFailed, "liveness probe failed", err),
		}
	}
	if !alive {
		return Liveness{State: Dead}
	}
	return Liveness{State: Alive}
}
