package resilient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/obs"
)

// =============================================================================
// Property: success on attempt k returns that result after exactly k calls
// =============================================================================

func testExecute_EventualSuccess(t *rapid.T) {
	maxRetries := rapid.IntRange(1, 6).Draw(t, "maxRetries")
	succeedOn := rapid.IntRange(1, maxRetries).Draw(t, "succeedOn")

	session := newFakeSession(true)
	ex := newTestExecutor(session, &recordingClock{})

	calls := 0
	got, err := Execute(context.Background(), ex, "search product", func(context.Context) (string, error) {
		calls++
		if calls < succeedOn {
			return "", fmt.Errorf("element not found (call %d)", calls)
		}
		return fmt.Sprintf("result-%d", calls), nil
	}, WithMaxRetries(maxRetries))

	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("result-%d", succeedOn), got)
	require.Equal(t, succeedOn, calls)
}

func TestExecute_EventualSuccess(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExecute_EventualSuccess)
}

// =============================================================================
// Property: an always-failing action runs exactly maxRetries times and the
// final error carries the last attempt's cause
// =============================================================================

func testExecute_BoundedRetries(t *rapid.T) {
	maxRetries := rapid.IntRange(1, 8).Draw(t, "maxRetries")

	session := newFakeSession(true)
	ex := newTestExecutor(session, &recordingClock{})

	calls := 0
	causes := make([]error, 0, maxRetries)
	_, err := Execute(context.Background(), ex, "open cart page", func(context.Context) (int, error) {
		calls++
		cause := fmt.Errorf("cart never loaded (call %d)", calls)
		causes = append(causes, cause)
		return 0, cause
	}, WithMaxRetries(maxRetries))

	require.Equal(t, maxRetries, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted), "got %T: %v", err, err)
	require.Equal(t, "open cart page", exhausted.Action)
	require.Equal(t, maxRetries, exhausted.Attempts)
	require.True(t, errors.Is(err, causes[len(causes)-1]))

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, maxRetries, actionErr.Attempt)
	require.Equal(t, errs.ExhaustedRetries, errs.CodeOf(err))
}

func TestExecute_BoundedRetries(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExecute_BoundedRetries)
}

// =============================================================================
// Property: recovery happens before the action whenever the session is
// invalid, and successful recovery never consumes an attempt
// =============================================================================

func testExecute_RecoveryTransparency(t *rapid.T) {
	maxRetries := rapid.IntRange(1, 6).Draw(t, "maxRetries")
	succeedOn := rapid.IntRange(1, maxRetries).Draw(t, "succeedOn")
	startDead := rapid.Bool().Draw(t, "startDead")
	kills := rapid.SliceOfN(rapid.Bool(), maxRetries, maxRetries).Draw(t, "kills")

	session := newFakeSession(!startDead)
	ex := newTestExecutor(session, &recordingClock{})

	calls := 0
	_, err := Execute(context.Background(), ex, "add product to cart", func(context.Context) (bool, error) {
		calls++
		if !session.usable() {
			return false, errors.New("action ran against an unrecovered session")
		}
		if calls < succeedOn {
			if kills[calls-1] {
				session.kill()
			}
			return false, errors.New("add to cart button not clickable")
		}
		return true, nil
	}, WithMaxRetries(maxRetries))
	require.NoError(t, err)
	require.Equal(t, succeedOn, calls)

	wantResets := 0
	if startDead {
		wantResets++
	}
	for i := 0; i < succeedOn-1; i++ {
		if kills[i] {
			wantResets++
		}
	}
	require.Equal(t, wantResets, session.resets)
	require.Equal(t, wantResets, session.navigations)
}

func TestExecute_RecoveryTransparency(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExecute_RecoveryTransparency)
}

// =============================================================================
// Property: a failing sink never replaces the action's error
// =============================================================================

func testExecute_DiagnosticIsolation(t *rapid.T) {
	maxRetries := rapid.IntRange(1, 5).Draw(t, "maxRetries")

	errX := errors.New("X")
	errY := errors.New("Y")
	sink := &fakeSink{err: errY}
	observer := &countingObserver{}
	ex := newTestExecutor(newFakeSession(true), &recordingClock{}, WithSink(sink), WithObserver(observer))

	err := ex.Do(context.Background(), "checkout", func(context.Context) error { return errX }, WithMaxRetries(maxRetries))

	require.True(t, errors.Is(err, errX))
	require.False(t, errors.Is(err, errY))
	require.NotContains(t, err.Error(), ": Y")

	wantTags := make([]string, 0, maxRetries)
	for i := 1; i <= maxRetries; i++ {
		wantTags = append(wantTags, fmt.Sprintf("error-checkout-attempt-%d", i))
	}
	require.Equal(t, wantTags, sink.tags)
	require.Equal(t, maxRetries, observer.diagFailures)
}

func TestExecute_DiagnosticIsolation(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExecute_DiagnosticIsolation)
}

// =============================================================================
// Property: backoff waits are base*1, base*2, ... and never decrease
// =============================================================================

func testExecute_LinearBackoff(t *rapid.T) {
	maxRetries := rapid.IntRange(1, 8).Draw(t, "maxRetries")
	base := time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(10*time.Second)).Draw(t, "base"))

	clock := &recordingClock{}
	ex := newTestExecutor(newFakeSession(true), clock, WithBaseDelay(base))

	_ = ex.Do(context.Background(), "flaky", func(context.Context) error {
		return errors.New("stale element")
	}, WithMaxRetries(maxRetries))

	require.Len(t, clock.sleeps, maxRetries-1)
	for i, d := range clock.sleeps {
		require.Equal(t, base*time.Duration(i+1), d)
		if i > 0 {
			require.GreaterOrEqual(t, d, clock.sleeps[i-1])
		}
	}
}

func TestExecute_LinearBackoff(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExecute_LinearBackoff)
}

// =============================================================================
// Scenarios
// =============================================================================

func TestExecute_ScenarioNoop(t *testing.T) {
	t.Parallel()
	session := newFakeSession(true)
	clock := &recordingClock{}
	observer := &countingObserver{}
	ex := newTestExecutor(session, clock, WithObserver(observer))

	calls := 0
	got, err := Execute(context.Background(), ex, "noop", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, WithMaxRetries(3))

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 1, calls)
	require.Empty(t, clock.sleeps)
	require.Zero(t, session.resets)
	require.Equal(t, 1, observer.started)
	require.Equal(t, 1, observer.lastAttempts)
	require.NoError(t, observer.lastErr)
}

func TestExecute_ScenarioFlaky(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	clock := &recordingClock{}
	ex := newTestExecutor(newFakeSession(true), clock, WithSink(sink))

	calls := 0
	got, err := Execute(context.Background(), ex, "flaky", func(context.Context) (int, error) {
		calls++
		if calls <= 2 {
			return 0, errors.New("timeout")
		}
		return calls, nil
	}, WithMaxRetries(3))

	require.NoError(t, err)
	require.Equal(t, 3, got)
	require.Equal(t, 3, calls)
	require.Equal(t, []string{"error-flaky-attempt-1", "error-flaky-attempt-2"}, sink.tags)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestExecute_ScenarioDeadSession(t *testing.T) {
	t.Parallel()
	session := newFakeSession(false)
	sink := &fakeSink{}
	observer := &countingObserver{}
	ex := newTestExecutor(session, &recordingClock{}, WithSink(sink), WithObserver(observer))

	calls := 0
	cause := errors.New("session crashed")
	err := ex.Do(context.Background(), "dead", func(context.Context) error {
		calls++
		session.kill()
		return cause
	}, WithMaxRetries(2))

	require.Equal(t, 2, calls)
	require.Equal(t, 2, session.resets)
	require.Equal(t, 2, observer.recoveries)
	require.Empty(t, sink.tags, "diagnostics need a live session")

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 2, exhausted.Attempts)
	require.True(t, errors.Is(err, cause))
}

// =============================================================================
// Recovery failures
// =============================================================================

func TestExecute_RecoveryFailureConsumesAttempt(t *testing.T) {
	t.Parallel()
	session := newFakeSession(false)
	session.resetFailures = 100
	observer := &countingObserver{}
	ex := newTestExecutor(session, &recordingClock{}, WithObserver(observer))

	calls := 0
	err := ex.Do(context.Background(), "open cart page", func(context.Context) error {
		calls++
		return nil
	}, WithMaxRetries(3))

	require.Zero(t, calls)
	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 3, exhausted.Attempts)

	var coded *errs.Error
	require.True(t, errors.As(err, &coded))
	require.Equal(t, errs.RecoveryFailed, coded.Code)
	require.Contains(t, err.Error(), "cannot recover browser to perform open cart page")

	// Pre-attempt recovery on each of 3 attempts plus post-backoff recovery after the first two.
	require.Equal(t, 5, session.resets)
	require.Equal(t, 5, observer.recoveryFailures)
}

func TestExecute_RecoveryFailureThenSuccess(t *testing.T) {
	t.Parallel()
	session := newFakeSession(false)
	session.resetFailures = 1
	clock := &recordingClock{}
	ex := newTestExecutor(session, clock)

	calls := 0
	got, err := Execute(context.Background(), ex, "home page", func(context.Context) (string, error) {
		calls++
		return "Home Page", nil
	}, WithMaxRetries(3))

	require.NoError(t, err)
	require.Equal(t, "Home Page", got)
	require.Equal(t, 1, calls)
	require.Equal(t, []time.Duration{time.Second}, clock.sleeps)
	require.Equal(t, 2, session.resets)
	require.Equal(t, 1, session.navigations)
}

func TestExecute_ProbeErrorTriggersRecovery(t *testing.T) {
	t.Parallel()
	session := newFakeSession(true)
	session.probeErrors = 1

	_, err := Execute(context.Background(), newTestExecutor(session, &recordingClock{}), "probe", func(context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, session.resets)
}

// =============================================================================
// Settling, cancellation and budget normalisation
// =============================================================================

func TestExecute_UsesSettlerWhenAvailable(t *testing.T) {
	t.Parallel()
	session := &settlingSession{fakeSession: newFakeSession(false)}
	clock := &recordingClock{}
	ex := newTestExecutor(session, clock, WithSettleDelay(5*time.Second), WithSettleTimeout(7*time.Second), WithSink(&fakeSink{}))

	calls := 0
	err := ex.Do(context.Background(), "settle", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("first try fails")
		}
		return nil
	})
	require.NoError(t, err)
	// One settle after recovery, one after the diagnostic capture.
	require.Equal(t, 2, session.settles)
	require.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, session.timeouts)
	require.Equal(t, []time.Duration{time.Second}, clock.sleeps, "only the backoff should use the clock")
}

func TestExecute_FixedSettleWithoutSettler(t *testing.T) {
	t.Parallel()
	clock := &recordingClock{}
	ex := newTestExecutor(newFakeSession(false), clock, WithSettleDelay(2*time.Second))

	require.NoError(t, ex.Do(context.Background(), "settle", func(context.Context) error { return nil }))
	require.Equal(t, []time.Duration{2 * time.Second}, clock.sleeps)
}

func TestExecute_CanceledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &recordingClock{onSleep: func(int) { cancel() }}
	observer := &countingObserver{}
	ex := newTestExecutor(newFakeSession(true), clock, WithObserver(observer))

	calls := 0
	cause := errors.New("still loading")
	err := ex.Do(ctx, "slow", func(context.Context) error {
		calls++
		return cause
	}, WithMaxRetries(5))

	require.Equal(t, 1, calls)
	require.Equal(t, errs.Canceled, errs.CodeOf(err))
	require.True(t, errors.Is(err, context.Canceled))
	require.True(t, errors.Is(err, cause))
	require.Equal(t, 1, observer.lastAttempts)
}

func TestExecute_AlreadyCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := newTestExecutor(newFakeSession(true), &recordingClock{}).Do(ctx, "never", func(context.Context) error {
		calls++
		return nil
	})
	require.Zero(t, calls)
	require.Equal(t, errs.Canceled, errs.CodeOf(err))
}

func TestExecute_NonPositiveBudgetRunsOnce(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, -3} {
		calls := 0
		err := newTestExecutor(newFakeSession(true), &recordingClock{}).Do(context.Background(), "once", func(context.Context) error {
			calls++
			return errors.New("boom")
		}, WithMaxRetries(n))
		require.Equal(t, 1, calls, "maxRetries=%d", n)
		var exhausted *ExhaustedError
		require.True(t, errors.As(err, &exhausted))
		require.Equal(t, 1, exhausted.Attempts)
	}
}

func TestExecute_DefaultBudget(t *testing.T) {
	t.Parallel()
	calls := 0
	ex := newTestExecutor(newFakeSession(true), &recordingClock{}, WithDefaultMaxRetries(4))
	_ = ex.Do(context.Background(), "default", func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Equal(t, 4, calls)
}

func TestDiagnosticTag(t *testing.T) {
	t.Parallel()
	require.Equal(t, "error-add-product-to-cart-attempt-2", DiagnosticTag("add product to cart", 2))
	require.Equal(t, "error-check-for-2-items-in-cart-attempt-1", DiagnosticTag("check for 2 items in cart", 1))
}

func TestProbe_Classifies(t *testing.T) {
	t.Parallel()
	require.Equal(t, Alive, Probe(context.Background(), newFakeSession(true)).State)
	require.Equal(t, Dead, Probe(context.Background(), newFakeSession(false)).State)

	session := newFakeSession(true)
	session.probeErrors = 1
	liveness := Probe(context.Background(), session)
	require.Equal(t, ProbeError, liveness.State)
	require.False(t, liveness.Valid())
	require.Equal(t, errs.LivenessCheckFailed, errs.CodeOf(liveness.Err))
	require.Equal(t, "probe_error", liveness.State.String())
}

func TestExecute_LogsWithActionCorrelation(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()

	ctx := obs.WithCorrelation(context.Background(), obs.Correlation{RunID: "run-42", Scenario: "search"})
	ex := New(newFakeSession(true), WithClock(&recordingClock{}))
	_, err := Execute(ctx, ex, "search for pants", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	found := false
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "action completed" {
			found = true
			require.Equal(t, "search for pants", entry["action"])
			require.Equal(t, "run-42", entry["run_id"])
			require.Equal(t, "search", entry["scenario"])
			require.Equal(t, "resilient", entry["pkg"])
		}
	}
	require.True(t, found, "no completion line in %s", buf.String())
}
