// Package obs holds the process logger and the run correlation that every
// log line carries.
package obs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	current  atomic.Pointer[slog.Logger]
	initOnce sync.Once
)

// Init installs the stderr JSON logger unless one is already installed.
func Init() {
	initOnce.Do(func() {
		current.CompareAndSwap(nil, newLogger(os.Stderr))
		slog.SetDefault(current.Load())
	})
}

func install(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

// InitWithFile tees the logger into a new test-log-<unixms>.txt under dir.
// The returned func switches back to stderr and closes the file.
func InitWithFile(dir string) (string, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("test-log-%d.txt", time.Now().UnixMilli()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	install(newLogger(io.MultiWriter(os.Stderr, f)))
	current.Load().Info("test log started", "path", path)

	return path, func() error {
		install(newLogger(os.Stderr))
		return f.Close()
	}, nil
}

// SetOutputForTests points the logger at w until the returned func runs.
func SetOutputForTests(w io.Writer) func() {
	prev := current.Load()
	install(newLogger(w))
	return func() {
		if prev == nil {
			prev = newLogger(os.Stderr)
		}
		install(prev)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}))
}

func base() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init()
	return current.Load()
}

// Pkg tags the logger with a package name.
func Pkg(pkg string) *slog.Logger {
	return base().With("pkg", pkg)
}

// From returns the logger with ctx's correlation fields attached.
func From(ctx context.Context) *slog.Logger {
	if attrs := CorrelationFromContext(ctx).attrs(); len(attrs) > 0 {
		return base().With(attrs...)
	}
	return base()
}

type correlationKey struct{}

// Correlation identifies where a log line came from: the run, the
// scenario and step inside it, the executor action, and for fake store
// handlers the HTTP request.
type Correlation struct {
	RunID     string
	Scenario  string
	Step      string
	Action    string
	RequestID string
}

func (c *Correlation) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{"run_id", &c.RunID},
		{"scenario", &c.Scenario},
		{"step", &c.Step},
		{"action", &c.Action},
		{"request_id", &c.RequestID},
	}
}

func (c Correlation) attrs() []any {
	var out []any
	for _, f := range c.fields() {
		if *f.val != "" {
			out = append(out, f.key, *f.val)
		}
	}
	return out
}

// WithCorrelation overlays the non-empty fields of corr on ctx's
// correlation.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	merged := CorrelationFromContext(ctx)
	src := corr.fields()
	for i, f := range merged.fields() {
		if v := strings.TrimSpace(*src[i].val); v != "" {
			*f.val = v
		}
	}
	return context.WithValue(ctx, correlationKey{}, merged)
}

func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, _ := ctx.Value(correlationKey{}).(Correlation)
	return corr
}
