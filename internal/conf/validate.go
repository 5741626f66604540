// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
)

// Supported database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ErrorCategory lets errors.New pick the right category.
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	collect := func(err error) {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	collect(validateDetectorSettings(&settings.Detector))
	collect(validateNotifySettings(&settings.Notify))
	collect(validateDatabaseSettings(&settings.Database))
	collect(validateServerSettings(&settings.Server))

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDetectorSettings(s *DetectorSettings) error {
	if _, err := WhitelistEntries(s.Whitelist); err != nil {
		return err
	}
	return nil
}

func validateNotifySettings(s *NotifySettings) error {
	var problems []string

	if s.DedupWindow < 0 {
		problems = append(problems, "notify.dedup_window must not be negative")
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		problems = append(problems, "notify.sentry.dsn is required when sentry is enabled")
	}
	if s.Sentry.SampleRate < 0 || s.Sentry.SampleRate > 1 {
		problems = append(problems, "notify.sentry.sample_rate must be between 0 and 1")
	}
	if s.Shoutrrr.Enabled && len(s.Shoutrrr.URLs) == 0 {
		problems = append(problems, "notify.shoutrrr.urls must list at least one service URL")
	}
	if s.Webhook.Enabled {
		if u, err := url.Parse(s.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, "notify.webhook.url must be an absolute http(s) URL")
		}
	}
	if s.Webhook.RateLimit < 0 {
		problems = append(problems, "notify.webhook.rate_limit must not be negative")
	}
	if s.MQTT.Enabled && (s.MQTT.Broker == "" || s.MQTT.Topic == "") {
		problems = append(problems, "notify.mqtt.broker and notify.mqtt.topic are required when mqtt is enabled")
	}

	if len(problems) > 0 {
		return errors.NewStd(strings.Join(problems, "; "))
	}
	return nil
}

func validateDatabaseSettings(s *DatabaseSettings) error {
	switch s.Type {
	case DatabaseSQLite:
		if s.SQLite.Path == "" {
			return errors.NewStd("database.sqlite.path is required")
		}
	case DatabaseMySQL:
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return errors.NewStd("database.mysql.host and database.mysql.database are required")
		}
		if s.MySQL.Port < 1 || s.MySQL.Port > 65535 {
			return fmt.Errorf("database.mysql.port must be between 1 and 65535, got %d", s.MySQL.Port)
		}
	default:
		return fmt.Errorf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, s.Type)
	}
	return nil
}

func validateServerSettings(s *ServerSettings) error {
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("server.listen must be host:port: %w", err)
	}
	return nil
}

// WhitelistEntries converts config entries to detector entries, rejecting
// unknown types and incomplete entries.
func WhitelistEntries(settings []WhitelistSetting) ([]detector.WhitelistEntry, error) {
	entries := make([]detector.WhitelistEntry, 0, len(settings))
	for i, s := range settings {
		kind, err := detector.ParseKind(s.Type)
		if err != nil {
			return nil, fmt.Errorf("detector.whitelist[%d]: %w", i, err)
		}
		entry := detector.WhitelistEntry{Kind: kind, Class: s.ClassName, Association: s.Association}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("detector.whitelist[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
