// Package middleware runs every HTTP request as one detector unit of work.
package middleware

import "github.com/tphakala/preloadwatch/internal/logger"

// GetLogger returns the middleware logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("middleware")
}
