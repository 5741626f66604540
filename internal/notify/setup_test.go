package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

func TestFromSettings(t *testing.T) {
	t.Parallel()
	quiet := logger.NewSlogLogger(nil, logger.LogLevelError, nil)

	t.Run("log and archive", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Notify.Log = true
		settings.Notify.MQTT = conf.MQTTSettings{Enabled: true, Broker: "tcp://127.0.0.1:1", Topic: "t", ClientID: "test"}
		settings.Archive = conf.ArchiveSettings{Enabled: true, InMemory: true}

		d, err := FromSettings(settings, quiet)
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })

		assert.Equal(t, []string{"log", "mqtt", "archive"}, d.Notifiers())
		assert.NotNil(t, d.Archive())
	})

	t.Run("nothing enabled", func(t *testing.T) {
		t.Parallel()
		d, err := FromSettings(&conf.Settings{}, quiet)
		require.NoError(t, err)
		assert.Empty(t, d.Notifiers())
	})

	t.Run("bad shoutrrr url", func(t *testing.T) {
		t.Parallel()
		settings := &conf.Settings{}
		settings.Notify.Shoutrrr = conf.ShoutrrrSettings{Enabled: true, URLs: []string{"nosuchservice://x"}}

		_, err := FromSettings(settings, quiet)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})
}
