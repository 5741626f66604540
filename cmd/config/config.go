// Package config implements the config subcommands.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/preloadwatch/internal/conf"
)

// Command returns the config command with its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}
	cmd.AddCommand(validateCommand(settings), showCommand(settings), initCommand())
	return cmd
}

// validateCommand relies on the root command having loaded and validated
// the configuration; reaching RunE means it is valid.
func validateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (database: %s, whitelist entries: %d)\n",
				settings.Database.Type, len(settings.Detector.Whitelist))
			return nil
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			redacted := *settings
			redacted.Database.MySQL.Password = redact(redacted.Database.MySQL.Password)
			redacted.Notify.MQTT.Password = redact(redacted.Notify.MQTT.Password)
			redacted.Notify.Sentry.DSN = redact(redacted.Notify.Sentry.DSN)
			if len(redacted.Notify.Shoutrrr.URLs) > 0 {
				urls := make([]string, len(redacted.Notify.Shoutrrr.URLs))
				for i := range urls {
					urls[i] = redact("url")
				}
				redacted.Notify.Shoutrrr.URLs = urls
			}
			if len(redacted.Notify.Webhook.Headers) > 0 {
				headers := make(map[string]string, len(redacted.Notify.Webhook.Headers))
				for k, v := range redacted.Notify.Webhook.Headers {
					headers[k] = redact(v)
				}
				redacted.Notify.Webhook.Headers = headers
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&redacted); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config.yaml",
		Long:  "Write the default configuration to path (default ./config.yaml). Existing files are left alone.",
		Args:  cobra.MaximumNArgs(1),
		// the root command must not try to load a config that does not exist yet
		Annotations: map[string]string{"skip-init": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := conf.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
