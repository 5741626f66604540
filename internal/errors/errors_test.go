package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderKeepsExplicitValues(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("unknown whitelist type %q", "bogus").
		Component("configuration").
		Category(CategoryConfiguration).
		Context("operation", "parse_whitelist").
		Build()

	assert.Equal(t, "configuration", ee.GetComponent())
	assert.True(t, IsCategory(ee, CategoryConfiguration))
	assert.False(t, IsCategory(ee, CategoryDatabase))
	assert.Equal(t, "parse_whitelist", ee.GetContext()["operation"])
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Build()

	assert.ErrorIs(t, ee, sentinel)
	assert.Equal(t, sentinel, Unwrap(ee.Err))
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"whitelist message", NewStd("bad whitelist entry"), "", CategoryConfiguration},
		{"invalid message", NewStd("invalid value"), "", CategoryValidation},
		{"datastore component", NewStd("boom"), "datastore", CategoryDatabase},
		{"notify component", NewStd("boom"), "notify", CategoryNotification},
		{"fallback", NewStd("boom"), "", CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestSentryReporterCapturesEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)

	reporter := NewSentryReporter(true, sentry.NewHub(client, sentry.NewScope()))
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("webhook failed for https://hooks.example.com/x?token=abc")).
		Component("notify").
		Category(CategoryNotification).
		Build()

	assert.True(t, ee.IsReported())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Message, "abc")
	assert.Equal(t, sentry.LevelWarning, events[0].Level)
}

func TestBasicURLScrub(t *testing.T) {
	got := basicURLScrub("Error at https://api.example.com/v1?api_key=secret123&x=1")
	assert.Equal(t, "Error at https://api.example.com/v1?[REDACTED]", got)

	got = basicURLScrub("mysql dsn=user:pass@tcp(db)/app")
	assert.NotContains(t, got, "pass@")
}
