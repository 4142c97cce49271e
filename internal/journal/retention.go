package journal

import (
	"context"
	"time"
)

// PruneInterval is how often RunRetention prunes.
const PruneInterval = time.Hour

// Logger defines the logging interface for this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RunRetention prunes entries older than keep, once at start and then
// every interval, until ctx is cancelled. Prune failures are logged and
// retried on the next tick.
func (s *Store) RunRetention(ctx context.Context, keep, interval time.Duration, logger Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Prune(ctx, s.now().Add(-keep))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("journal prune failed", "error", err)
		case n > 0:
			logger.Debug("journal pruned", "removed", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
