package conf

import (
	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

// Apply pushes the detector section into cfg. The whitelist is replaced
// only if every entry is valid; toggles are applied either way.
func Apply(settings *Settings, cfg *detector.Config) error {
	if settings == nil || cfg == nil {
		return errors.New(errors.NewStd("apply requires settings and a detector config")).
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := settings.Detector
	cfg.SetEnabled(s.Enabled)
	cfg.SetNPlusOneEnabled(s.NPlusOneQuery)
	cfg.SetUnusedEagerLoadEnabled(s.UnusedEagerLoading)
	cfg.SetCallSitesEnabled(s.CallSites)

	entries, err := WhitelistEntries(s.Whitelist)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "apply_whitelist").
			Build()
	}
	if err := cfg.SetWhitelist(entries); err != nil {
		return errors.New(err).Category(errors.CategoryConfiguration).Build()
	}

	GetLogger().Debug("detector configuration applied",
		logger.Bool("enabled", s.Enabled),
		logger.Bool("n_plus_one_query", s.NPlusOneQuery),
		logger.Bool("unused_eager_loading", s.UnusedEagerLoading),
		logger.Int("whitelist", len(entries)))
	return nil
}
