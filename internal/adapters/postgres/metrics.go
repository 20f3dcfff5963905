package postgres

import (
	"time"

	"github.com/sentryops/bypassguard/internal/logger"
)

// observeQuery times a repository call and records the elapsed time in the
// query duration histogram. Use as: defer observeQuery("request_get_by_id")()
func observeQuery(operation string) func() {
	start := time.Now()
	return func() {
		logger.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
