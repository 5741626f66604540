// Package notify delivers detector notices to people and systems: the log,
// Sentry, chat services through shoutrrr, a JSON webhook, MQTT, an HTML
// footer on the response and a local archive.
package notify

import (
	"context"

	"github.com/tphakala/preloadwatch/internal/logger"
)

// Notifier delivers one report. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, r Report) error
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(notifier string, err error)
}

// GetLogger returns the notify module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notify")
}
