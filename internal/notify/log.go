package notify

import (
	"context"
	"strings"

	"github.com/tphakala/preloadwatch/internal/logger"
)

// LogNotifier writes each notice as a warning.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier logs through l, or the notify module logger when l is nil.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = GetLogger()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, r Report) error {
	log := n.log.WithContext(ctx)
	for _, notice := range r.Notices {
		log.Warn(notice.Title(),
			logger.String("kind", notice.Kind.String()),
			logger.String("class", notice.Class),
			logger.String("associations", strings.Join(notice.Associations, ",")),
			logger.String("call_site", notice.CallSite),
			logger.String("unit_of_work", r.UnitOfWork),
			logger.String("source", r.Source))
	}
	return nil
}
