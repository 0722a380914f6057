package autotrack

import (
	"context"
	"fmt"
)

// Track validates the configuration, selects the tracker for its algorithm
// and starts the run. The returned stream yields Progress then Result per
// frame in strictly increasing frame order. Cancel via ctx or Stream.Stop;
// cancellation ends the stream without error.
func Track(ctx context.Context, cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var run runFunc
	switch cfg.Algorithm {
	case AlgorithmTemplate:
		run = (&templateTracker{cfg: cfg}).run
	case AlgorithmOpticalFlow:
		run = (&flowTracker{cfg: cfg}).run
	default:
		return nil, fmt.Errorf("autotrack: unknown algorithm %q", cfg.Algorithm)
	}
	return newStream(ctx, run), nil
}
