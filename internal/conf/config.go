// config.go: settings struct of preloadwatch and the functions to load them.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// envPrefix prefixes every environment override, e.g. PRELOADWATCH_SERVER_LISTEN.
const envPrefix = "PRELOADWATCH"

// WhitelistSetting is one suppressed finding as written in config.yaml.
type WhitelistSetting struct {
	Type        string `mapstructure:"type" yaml:"type"`               // n_plus_one_query or unused_eager_loading
	ClassName   string `mapstructure:"class_name" yaml:"class_name"`   // model name, e.g. Post
	Association string `mapstructure:"association" yaml:"association"` // association field, e.g. Comments
}

// DetectorSettings contains the process-wide detector toggles.
type DetectorSettings struct {
	Enabled            bool               `mapstructure:"enabled" yaml:"enabled"`                           // master switch
	NPlusOneQuery      bool               `mapstructure:"n_plus_one_query" yaml:"n_plus_one_query"`         // N+1 checker
	UnusedEagerLoading bool               `mapstructure:"unused_eager_loading" yaml:"unused_eager_loading"` // unused eager load checker
	CallSites          bool               `mapstructure:"call_sites" yaml:"call_sites"`                     // capture call sites for notices
	Whitelist          []WhitelistSetting `mapstructure:"whitelist" yaml:"whitelist"`
}

// SentrySettings configures the sentry notifier and error telemetry.
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// ShoutrrrSettings configures chat and push delivery through shoutrrr URLs.
type ShoutrrrSettings struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	URLs    []string      `mapstructure:"urls" yaml:"urls"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// WebhookSettings configures the JSON webhook notifier.
type WebhookSettings struct {
	Enabled   bool              `mapstructure:"enabled" yaml:"enabled"`
	URL       string            `mapstructure:"url" yaml:"url"`
	Timeout   time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64           `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 disables limiting
	Headers   map[string]string `mapstructure:"headers" yaml:"headers"`
}

// MQTTSettings configures publishing notices to an MQTT broker.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Retain   bool   `mapstructure:"retain" yaml:"retain"`
}

// NotifySettings contains the notifier configuration.
type NotifySettings struct {
	Log         bool             `mapstructure:"log" yaml:"log"`
	HTMLFooter  bool             `mapstructure:"html_footer" yaml:"html_footer"`
	DedupWindow time.Duration    `mapstructure:"dedup_window" yaml:"dedup_window"` // identical notices are sent once per window
	Sentry      SentrySettings   `mapstructure:"sentry" yaml:"sentry"`
	Shoutrrr    ShoutrrrSettings `mapstructure:"shoutrrr" yaml:"shoutrrr"`
	Webhook     WebhookSettings  `mapstructure:"webhook" yaml:"webhook"`
	MQTT        MQTTSettings     `mapstructure:"mqtt" yaml:"mqtt"`
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"` // path to database file, ":memory:" for in-memory
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// DatabaseSettings selects the demo datastore.
type DatabaseSettings struct {
	Type          string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SlowThreshold time.Duration  `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	SQLite        SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL         MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
}

// ServerSettings configures the demo HTTP server.
type ServerSettings struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	Seed   bool   `mapstructure:"seed" yaml:"seed"` // seed sample data on start
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ArchiveSettings configures the notice archive.
type ArchiveSettings struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Path     string        `mapstructure:"path" yaml:"path"`
	InMemory bool          `mapstructure:"in_memory" yaml:"in_memory"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"` // 0 keeps notices forever
}

// Settings is the root of config.yaml.
type Settings struct {
	Debug    bool                 `mapstructure:"debug" yaml:"debug"`
	Detector DetectorSettings     `mapstructure:"detector" yaml:"detector"`
	Notify   NotifySettings       `mapstructure:"notify" yaml:"notify"`
	Database DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Server   ServerSettings       `mapstructure:"server" yaml:"server"`
	Metrics  MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Archive  ArchiveSettings      `mapstructure:"archive" yaml:"archive"`
	Logging  logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads config.yaml from the default paths plus environment overrides
// into the global viper instance, validates it and stores the result.
func Load() (*Settings, error) {
	return LoadWith(viper.GetViper(), "")
}

// LoadWith is Load against a caller supplied viper instance. A non-empty
// configFile bypasses the search paths.
func LoadWith(v *viper.Viper, configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// initViper sets defaults, binds the environment and reads the config file.
// A missing config file is not an error; defaults apply.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment override issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	err := v.ReadInConfig()
	if err == nil {
		GetLogger().Debug("config loaded", logger.String("path", v.ConfigFileUsed()))
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		GetLogger().Debug("no config file found, using defaults")
		return nil
	}
	return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
		Category(errors.CategoryConfiguration).
		Context("operation", "read_config").
		Context("path", configFile).
		Build()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "preloadwatch"))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/preloadwatch")
	}
	return paths
}

// GetSettings returns the settings stored by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfigYAML returns the embedded default config.yaml.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the default config.yaml to path unless a file
// already exists there.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file %s already exists", path).
			Category(errors.CategoryConfiguration).
			Build()
	}

	data, err := DefaultConfigYAML()
	if err != nil {
		return errors.New(err).Category(errors.CategoryFileIO).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.New(fmt.Errorf("error writing default config file: %w", err)).
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}
