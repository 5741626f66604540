package cmd

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/preloadwatch/cmd/config"
	"github.com/tphakala/preloadwatch/cmd/demo"
	"github.com/tphakala/preloadwatch/cmd/serve"
	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

// skipInitAnnotation marks commands that must run without a loaded config.
// Subcommands set it literally to avoid importing this package.
const skipInitAnnotation = "skip-init"

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var (
		configFile string
		debug      bool
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "preloadwatch",
		Short:         "Detect N+1 queries and unused eager loading in GORM applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/preloadwatch, /etc/preloadwatch)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		serve.Command(settings),
		demo.Command(settings),
		configcmd.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipInitAnnotation] == "true" {
			return nil
		}
		cl, err := initialize(settings, configFile, debug)
		if err != nil {
			return err
		}
		central = cl
		return nil
	}

	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		sentry.Flush(2 * time.Second)
		if central != nil {
			return central.Close()
		}
		return nil
	}

	return rootCmd
}

// initialize loads the configuration, installs the central logger, applies
// detector settings and starts error telemetry when sentry is enabled.
func initialize(settings *conf.Settings, configFile string, debug bool) (*logger.CentralLogger, error) {
	loaded, err := conf.LoadWith(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}
	*settings = *loaded

	if debug {
		settings.Debug = true
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := conf.Apply(settings, detector.DefaultConfig()); err != nil {
		return nil, err
	}

	if s := settings.Notify.Sentry; s.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         s.DSN,
			Environment: s.Environment,
			SampleRate:  s.SampleRate,
		}); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "sentry_init").
				Build()
		}
		errors.SetTelemetryReporter(errors.NewSentryReporter(true, sentry.CurrentHub()))
	}

	central.Module("cli").Debug("configuration loaded",
		logger.Bool("debug", settings.Debug),
		logger.String("database", settings.Database.Type))
	return central, nil
}
