package notify

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/preloadwatch/internal/errors"
)

// ShoutrrrNotifier posts reports to every configured shoutrrr service URL
// (Slack, Discord, Telegram, generic webhooks, ...).
type ShoutrrrNotifier struct {
	sender *router.ServiceRouter
}

// NewShoutrrrNotifier validates urls and builds one sender for all of them.
func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.New(errors.NewStd("at least one shoutrrr URL is required")).
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the URL may carry tokens, keep it out of the error context
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("notifier", "shoutrrr").
			Context("urls", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrNotifier{sender: sender}, nil
}

func (n *ShoutrrrNotifier) Name() string { return "shoutrrr" }

// Notify sends the plain-text report. The router applies its own timeout.
func (n *ShoutrrrNotifier) Notify(_ context.Context, r Report) error {
	params := stypes.Params{}
	params.SetTitle(r.Summary())

	var errs []error
	for _, err := range n.sender.Send(PlainText(r), &params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Category(errors.CategoryNotification).
			Context("notifier", "shoutrrr").
			Build()
	}
	return nil
}
