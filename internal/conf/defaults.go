// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for every key so that environment
// overrides resolve through AutomaticEnv.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("detector.enabled", true)
	v.SetDefault("detector.n_plus_one_query", true)
	v.SetDefault("detector.unused_eager_loading", true)
	v.SetDefault("detector.call_sites", true)
	v.SetDefault("detector.whitelist", []WhitelistSetting{})

	v.SetDefault("notify.log", true)
	v.SetDefault("notify.html_footer", false)
	v.SetDefault("notify.dedup_window", 10*time.Minute)

	v.SetDefault("notify.sentry.enabled", false)
	v.SetDefault("notify.sentry.dsn", "")
	v.SetDefault("notify.sentry.environment", "development")
	v.SetDefault("notify.sentry.sample_rate", 1.0)

	v.SetDefault("notify.shoutrrr.enabled", false)
	v.SetDefault("notify.shoutrrr.urls", []string{})
	v.SetDefault("notify.shoutrrr.timeout", 10*time.Second)

	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.timeout", 5*time.Second)
	v.SetDefault("notify.webhook.rate_limit", 1.0)
	v.SetDefault("notify.webhook.headers", map[string]string{})

	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notify.mqtt.topic", "preloadwatch/notices")
	v.SetDefault("notify.mqtt.client_id", "preloadwatch")
	v.SetDefault("notify.mqtt.username", "")
	v.SetDefault("notify.mqtt.password", "")
	v.SetDefault("notify.mqtt.retain", false)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.sqlite.path", "preloadwatch.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "preloadwatch")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.seed", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "data/archive")
	v.SetDefault("archive.in_memory", false)
	v.SetDefault("archive.ttl", 7*24*time.Hour)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/preloadwatch.log")
	v.SetDefault("logging.file_output.level", "info")
}
