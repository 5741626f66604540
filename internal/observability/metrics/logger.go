// Package metrics provides Prometheus collectors for preloadwatch.
package metrics

import "github.com/tphakala/preloadwatch/internal/logger"

// GetLogger returns the metrics logger, resolved on each call so it follows
// the central logger once it is configured.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
