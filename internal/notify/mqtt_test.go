package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMessage struct {
	topic   string
	retain  bool
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the notifier uses.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	connectErr   error
	connects     int
	disconnects  int
	published    []publishedMessage
	publishToken mqtt.Token
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	c.connected = c.connectErr == nil
	return newFakeToken(c.connectErr, true)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMessage{topic: topic, retain: retained, payload: payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken
	}
	return newFakeToken(nil, true)
}

func TestMQTTNotifierPublishes(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	n := newMQTTNotifierWithClient(client, "preloadwatch/notices", true)

	require.NoError(t, n.Notify(t.Context(), sampleReport()))
	require.NoError(t, n.Notify(t.Context(), sampleReport()))
	assert.Equal(t, 1, client.connects, "connects once")
	require.Len(t, client.published, 2)

	msg := client.published[0]
	assert.Equal(t, "preloadwatch/notices", msg.topic)
	assert.True(t, msg.retain)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(msg.payload, &payload))
	assert.Equal(t, "uow-1", payload.UnitOfWork)
	require.Len(t, payload.Notices, 2)
	assert.Equal(t, "unused_eager_loading", payload.Notices[1].Kind)

	require.NoError(t, n.Close())
	assert.Equal(t, 1, client.disconnects)
}

func TestMQTTNotifierConnectError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connectErr: errors.NewStd("not authorized")}
	n := newMQTTNotifierWithClient(client, "t", false)

	err := n.Notify(t.Context(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Empty(t, client.published)
}

func TestMQTTNotifierPublishHonoursContext(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true, publishToken: newFakeToken(nil, false)}
	n := newMQTTNotifierWithClient(client, "t", false)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := n.Notify(ctx, sampleReport())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMQTTNotifierDoesNotConnect(t *testing.T) {
	t.Parallel()

	n := NewMQTTNotifier(&conf.MQTTSettings{Broker: "tcp://127.0.0.1:1", Topic: "t", ClientID: "test"})
	assert.Equal(t, "mqtt", n.Name())
	assert.False(t, n.client.IsConnected())
	require.NoError(t, n.Close())
}
