package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
)

const testHookURL = "https://hooks.example.com/notices"

// setupWebhookMock returns a client whose requests are answered by a mock
// transport instead of the network.
func setupWebhookMock(t *testing.T) (*http.Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	return &http.Client{Transport: transport}, transport
}

func TestWebhookPostsJSON(t *testing.T) {
	t.Parallel()
	client, transport := setupWebhookMock(t)

	var (
		mu       sync.Mutex
		received *jason.Object
		headers  http.Header
	)
	transport.RegisterResponder(http.MethodPost, testHookURL, func(req *http.Request) (*http.Response, error) {
		obj, err := jason.NewObjectFromReader(req.Body)
		if err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
		}
		mu.Lock()
		received, headers = obj, req.Header.Clone()
		mu.Unlock()
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})

	w, err := NewWebhookNotifier(&conf.WebhookSettings{
		URL:     testHookURL,
		Timeout: time.Second,
		Headers: map[string]string{"X-Team": "backend"},
	}, client)
	require.NoError(t, err)

	require.NoError(t, w.Notify(t.Context(), sampleReport()))
	assert.Equal(t, 1, transport.GetTotalCallCount())

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)

	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "backend", headers.Get("X-Team"))

	uow, err := received.GetString("unit_of_work")
	require.NoError(t, err)
	assert.Equal(t, "uow-1", uow)

	ts, err := received.GetString("timestamp")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", ts)

	notices, err := received.GetObjectArray("notices")
	require.NoError(t, err)
	require.Len(t, notices, 2)

	kind, err := notices[0].GetString("kind")
	require.NoError(t, err)
	assert.Equal(t, "n_plus_one_query", kind)

	assocs, err := notices[0].GetStringArray("associations")
	require.NoError(t, err)
	assert.Equal(t, []string{"Comments"}, assocs)

	_, err = notices[1].GetString("call_site")
	require.Error(t, err, "empty call sites are omitted")
}

func TestWebhookErrorStatus(t *testing.T) {
	t.Parallel()
	client, transport := setupWebhookMock(t)
	transport.RegisterResponder(http.MethodPost, testHookURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream unavailable\n"))

	w, err := NewWebhookNotifier(&conf.WebhookSettings{URL: testHookURL}, client)
	require.NoError(t, err)

	err = w.Notify(t.Context(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: upstream unavailable")
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
}

func TestWebhookNetworkError(t *testing.T) {
	t.Parallel()
	client, transport := setupWebhookMock(t)
	transport.RegisterResponder(http.MethodPost, testHookURL,
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	w, err := NewWebhookNotifier(&conf.WebhookSettings{URL: testHookURL}, client)
	require.NoError(t, err)

	err = w.Notify(t.Context(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestWebhookRateLimit(t *testing.T) {
	t.Parallel()
	client, transport := setupWebhookMock(t)
	transport.RegisterResponder(http.MethodPost, testHookURL, httpmock.NewStringResponder(http.StatusOK, ""))

	w, err := NewWebhookNotifier(&conf.WebhookSettings{URL: testHookURL, RateLimit: 0.001}, client)
	require.NoError(t, err)

	require.NoError(t, w.Notify(t.Context(), sampleReport()))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err = w.Notify(ctx, sampleReport())
	require.Error(t, err, "the second request would wait far past the deadline")
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestNewWebhookNotifierRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookNotifier(&conf.WebhookSettings{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
