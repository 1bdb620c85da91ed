// Package diagnostics persists screenshots of failed attempts.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/logutil"
	"github.com/kuitang/storefront-e2e/internal/obs"
	"github.com/kuitang/storefront-e2e/internal/resilient"
)

// ScreenshotSource produces a PNG of the current page.
type ScreenshotSource interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// ObjectStore is the subset of the artifact store used by S3Sink.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Location(key string) string
}

// FileSink writes <dir>/<tag>.png.
type FileSink struct {
	Source ScreenshotSource
	Dir    string
}

func (s *FileSink) Capture(ctx context.Context, tag string) error {
	png, err := s.Source.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	name := filepath.Join(s.Dir, fileName(tag))
	if err := os.WriteFile(name, png, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	obs.From(ctx).Info("screenshot saved", "pkg", "diagnostics", "path", name, "bytes", len(png))
	return nil
}

// S3Sink uploads <runID>/<tag>.png to an artifact bucket.
type S3Sink struct {
	Source ScreenshotSource
	Store  ObjectStore
	RunID  string
}

func (s *S3Sink) Capture(ctx context.Context, tag string) error {
	png, err := s.Source.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	key := path.Join(s.RunID, fileName(tag))
	if err := s.Store.Put(ctx, key, png, "image/png"); err != nil {
		return err
	}
	obs.From(ctx).Info("screenshot uploaded", "pkg", "diagnostics", "url", s.Store.Location(key), "bytes", len(png))
	return nil
}

// MultiSink captures into every sink and joins their errors.
type MultiSink []resilient.Sink

func (m MultiSink) Capture(ctx context.Context, tag string) error {
	var all []error
	for _, sink := range m {
		if err := sink.Capture(ctx, tag); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

func fileName(tag string) string {
	if tag == "" {
		tag = "capture"
	}
	return logutil.Slug(tag) + ".png"
}

// Validate reports a missing source or destination.
func (s *FileSink) Validate() error {
	if s.Source == nil || s.Dir == "" {
		return errs.New(errs.InvalidArgument, "file sink needs a source and a directory")
	}
	return nil
}

// Validate reports a missing source, store or run id.
func (s *S3Sink) Validate() error {
	if s.Source == nil || s.Store == nil || s.RunID == "" {
		return errs.New(errs.InvalidArgument, "s3 sink needs a source, a store and a run id")
	}
	return nil
}
