package notify

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
)

const sentryFlushTimeout = 2 * time.Second

// SentryNotifier captures each notice as a warning-level Sentry message,
// fingerprinted so repeats of the same notice group into one issue.
type SentryNotifier struct {
	hub *sentry.Hub
}

// NewSentryNotifier sends through hub, or sentry.CurrentHub() when nil.
func NewSentryNotifier(hub *sentry.Hub) *SentryNotifier {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryNotifier{hub: hub}
}

// NewSentryNotifierFromSettings creates a dedicated client for notices.
func NewSentryNotifierFromSettings(s *conf.SentrySettings) (*SentryNotifier, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         s.DSN,
		Environment: s.Environment,
		SampleRate:  s.SampleRate,
	})
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("notifier", "sentry").
			Build()
	}
	return NewSentryNotifier(sentry.NewHub(client, sentry.NewScope())), nil
}

func (n *SentryNotifier) Name() string { return "sentry" }

func (n *SentryNotifier) Notify(_ context.Context, r Report) error {
	for _, notice := range r.Notices {
		n.hub.WithScope(func(scope *sentry.Scope) {
			scope.SetLevel(sentry.LevelWarning)
			scope.SetTag("kind", notice.Kind.String())
			scope.SetTag("class", notice.Class)
			if r.UnitOfWork != "" {
				scope.SetTag("unit_of_work", r.UnitOfWork)
			}
			scope.SetContext("notice", map[string]any{
				"associations": notice.Associations,
				"call_site":    notice.CallSite,
				"source":       r.Source,
			})
			scope.SetFingerprint([]string{"preloadwatch", notice.Key()})
			n.hub.CaptureMessage(notice.Title() + ": " + notice.Body())
		})
	}
	return nil
}

// Close flushes buffered events.
func (n *SentryNotifier) Close() error {
	n.hub.Flush(sentryFlushTimeout)
	return nil
}
