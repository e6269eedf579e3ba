package housekeeping

import (
	"context"
	"time"

	"github.com/buildcache/cachecore/pkg/logging"
)

// housekeepingInterval is the interval at which HousekeepRegularly re-invokes
// Housekeep.
const housekeepingInterval = 24 * time.Hour

// HousekeepRegularly runs Housekeep against cacheRoot at a standard interval.
// It is designed to run as a background goroutine alongside a long-lived
// build-server process that uses PackFileCacheStrategy across many cache
// locations sharing cacheRoot as a parent directory; it terminates when ctx
// is cancelled.
func HousekeepRegularly(ctx context.Context, cacheRoot string, logger *logging.Logger) {
	logger.Log("performing initial housekeeping")
	Housekeep(cacheRoot, logger)

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Log("performing regular housekeeping")
			Housekeep(cacheRoot, logger)
		}
	}
}
