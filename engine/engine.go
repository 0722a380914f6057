// Package engine gates tracking on the native vision library being usable.
// Loading is asynchronous and idempotent: the first Ensure kicks off the
// probe, every caller waits on the same outcome.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// Loader resolves once the vision library is ready. The zero value is not
// usable; construct with NewLoader.
type Loader struct {
	logger *slog.Logger
	once   sync.Once
	ready  chan struct{}
	err    error
}

// NewLoader returns an unstarted loader. The probe runs on first Ensure.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger, ready: make(chan struct{})}
}

// Ensure blocks until the vision library is ready or ctx is done. Safe for
// concurrent use; the probe runs exactly once.
func (l *Loader) Ensure(ctx context.Context) error {
	l.once.Do(func() {
		go func() {
			defer close(l.ready)
			l.err = l.probe()
		}()
	})
	select {
	case <-l.ready:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) probe() error {
	ver := gocv.Version()
	if ver == "" {
		return fmt.Errorf("vision engine unavailable: no OpenCV version reported")
	}
	// A Mat round-trip catches broken native bindings that still link.
	m := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8U)
	defer m.Close()
	if m.Empty() {
		return fmt.Errorf("vision engine unavailable: mat allocation failed")
	}
	if l.logger != nil {
		l.logger.Info("vision engine ready", "opencv", ver)
	}
	return nil
}
