// Package observability wires the Prometheus collectors into one registry
// and serves them.
package observability

import "github.com/tphakala/preloadwatch/internal/logger"

// GetLogger returns the observability logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}
