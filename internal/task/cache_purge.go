package task

import (
	"context"

	"go.uber.org/zap"
)

const logEventCachePurge = "cache_purge"

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	Purge() int
}

// NamedPurger labels a Purger for logging.
type NamedPurger struct {
	Name   string
	Purger Purger
}

// NewCachePurgeRunner returns a RunnerFunc that purges every cache in order.
func NewCachePurgeRunner(logger *zap.Logger, purgers ...NamedPurger) RunnerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) {
		for _, namedPurger := range purgers {
			if ctx.Err() != nil {
				return
			}
			if namedPurger.Purger == nil {
				continue
			}
			removed := namedPurger.Purger.Purge()
			if removed > 0 {
				logger.Debug(logEventCachePurge, zap.String("cache", namedPurger.Name), zap.Int("removed", removed))
			}
		}
	}
}
