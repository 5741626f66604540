// env.go - environment variable overrides and their validation
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/preloadwatch/internal/errors"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings lists the overrides that get validated on load. Every other
// key is still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"detector.enabled", "PRELOADWATCH_DETECTOR_ENABLED", validateEnvBool},
		{"detector.n_plus_one_query", "PRELOADWATCH_DETECTOR_N_PLUS_ONE_QUERY", validateEnvBool},
		{"detector.unused_eager_loading", "PRELOADWATCH_DETECTOR_UNUSED_EAGER_LOADING", validateEnvBool},

		{"database.type", "PRELOADWATCH_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.mysql.port", "PRELOADWATCH_DATABASE_MYSQL_PORT", validateEnvPort},
		{"database.mysql.password", "PRELOADWATCH_DATABASE_MYSQL_PASSWORD", nil},

		{"server.listen", "PRELOADWATCH_SERVER_LISTEN", validateEnvListen},

		{"notify.sentry.dsn", "PRELOADWATCH_SENTRY_DSN", nil},
		{"notify.webhook.url", "PRELOADWATCH_WEBHOOK_URL", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - ")).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	}
	return fmt.Errorf("database type must be %q or %q", DatabaseSQLite, DatabaseMySQL)
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}
