package notify

import (
	"net/http"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

// FromSettings builds a dispatcher with every notifier enabled in settings.
// The HTML footer is applied by the HTTP middleware and is not a notifier.
func FromSettings(settings *conf.Settings, log logger.Logger) (*Dispatcher, error) {
	if log == nil {
		log = GetLogger()
	}
	s := &settings.Notify

	var notifiers []Notifier
	fail := func(err error) (*Dispatcher, error) {
		for _, n := range notifiers {
			if a, ok := n.(*Archive); ok {
				_ = a.Close()
			}
		}
		return nil, err
	}

	if s.Log {
		notifiers = append(notifiers, NewLogNotifier(log))
	}
	if s.Sentry.Enabled {
		n, err := NewSentryNotifierFromSettings(&s.Sentry)
		if err != nil {
			return fail(err)
		}
		notifiers = append(notifiers, n)
	}
	if s.Shoutrrr.Enabled {
		n, err := NewShoutrrrNotifier(s.Shoutrrr.URLs, s.Shoutrrr.Timeout)
		if err != nil {
			return fail(err)
		}
		notifiers = append(notifiers, n)
	}
	if s.Webhook.Enabled {
		n, err := NewWebhookNotifier(&s.Webhook, http.DefaultClient)
		if err != nil {
			return fail(err)
		}
		notifiers = append(notifiers, n)
	}
	if s.MQTT.Enabled {
		notifiers = append(notifiers, NewMQTTNotifier(&s.MQTT))
	}
	if settings.Archive.Enabled {
		a, err := OpenArchive(&settings.Archive)
		if err != nil {
			return fail(errors.New(err).Context("component", "archive").Build())
		}
		notifiers = append(notifiers, a)
	}

	d := NewDispatcher(NewThrottle(s.DedupWindow), notifiers...)
	d.log = log
	log.Info("notifiers configured", logger.Int("count", len(notifiers)))
	return d, nil
}
