package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/cucoon/internal/domain/alert"
)

var errTestBroker = errors.New("test broker error")

// fakeToken is a completed or pending library token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)

	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done

	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload string
}

// fakeAPI implements the parts of mqtt.Client the wrapper uses.
type fakeAPI struct {
	mqtt.Client

	mu           sync.Mutex
	open         bool
	connectToken *fakeToken
	publishErr   error
	published    []published
	subscribed   []string
	handler      mqtt.MessageHandler
	disconnected bool
	connects     int
}

func (f *fakeAPI) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++

	return f.connectToken
}

func (f *fakeAPI) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connects
}

func (f *fakeAPI) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.open
}

func (f *fakeAPI) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload.(string)})

	return completedToken(f.publishErr)
}

func (f *fakeAPI) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribed = append(f.subscribed, topic)
	f.handler = handler

	return completedToken(nil)
}

func (f *fakeAPI) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnected = true
	f.open = false
}

// fakeMessage carries a payload on a topic.
type fakeMessage struct {
	mqtt.Message

	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string { return m.topic }

func (m *fakeMessage) Payload() []byte { return m.payload }

type recorder struct {
	mu       sync.Mutex
	statuses []alert.ConnectionStatus
	payloads []string
}

func (r *recorder) status(s alert.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, s)
}

func (r *recorder) message(_ string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payloads = append(r.payloads, string(payload))
}

func (r *recorder) seen() []alert.ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]alert.ConnectionStatus(nil), r.statuses...)
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *recorder) {
	t.Helper()

	rec := new(recorder)
	opts := Options{
		BrokerURL:            "ws://127.0.0.1:9001/mqtt",
		Topic:                alert.DefaultAlertTopic,
		QoS:                  1,
		ConnectRetryInterval: 10 * time.Millisecond,
	}

	c, err := newClient(context.Background(), opts, rec.message, rec.status, func(*mqtt.ClientOptions) mqtt.Client {
		return api
	})
	require.NoError(t, err)

	return c, rec
}

// TestNew_Validates rejects missing broker and topic.
func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{Topic: "x"}, nil, nil)
	require.ErrorIs(t, err, errBrokerRequired)

	_, err = New(context.Background(), Options{BrokerURL: "tcp://127.0.0.1:1883"}, nil, nil)
	require.ErrorIs(t, err, errTopicRequired)
}

// TestClient_GeneratesClientID ensures every session gets a distinct id.
func TestClient_GeneratesClientID(t *testing.T) {
	t.Parallel()

	a, _ := newTestClient(t, &fakeAPI{})
	b, _ := newTestClient(t, &fakeAPI{})

	require.Contains(t, a.opts.ClientID, clientIDPrefix)
	require.NotEqual(t, a.opts.ClientID, b.opts.ClientID)
}

// TestClient_Lifecycle walks through connect, subscribe, message, loss and reconnect.
func TestClient_Lifecycle(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{connectToken: &fakeToken{done: make(chan struct{})}}
	c, rec := newTestClient(t, api)

	require.Equal(t, alert.Disconnected, c.Status())

	c.Connect()
	require.Equal(t, alert.Connecting, c.Status())

	// The attempt runs in the background; wait for it before the session comes up.
	require.Eventually(t, func() bool { return api.connectCount() == 1 }, time.Second, time.Millisecond)

	api.mu.Lock()
	api.open = true
	api.mu.Unlock()
	c.handleConnect(api)
	require.Equal(t, alert.Connected, c.Status())
	require.Equal(t, []string{alert.DefaultAlertTopic}, api.subscribed)

	// Inbound payloads reach the handler untouched.
	api.handler(api, &fakeMessage{topic: alert.DefaultAlertTopic, payload: []byte("ALERT")})

	c.handleConnectionLost(api, errTestBroker)
	require.Equal(t, alert.Disconnected, c.Status())

	c.handleReconnecting(api, nil)
	require.Equal(t, alert.Connecting, c.Status())

	// Resubscribes after reconnect.
	c.handleConnect(api)
	require.Len(t, api.subscribed, 2)

	c.Close(0)
	require.True(t, api.disconnected)
	require.Equal(t, alert.Disconnected, c.Status())

	rec.mu.Lock()
	defer rec.mu.Unlock()

	require.Equal(t, []string{"ALERT"}, rec.payloads)
	require.Equal(t, []alert.ConnectionStatus{
		alert.Connecting,
		alert.Connected,
		alert.Disconnected,
		alert.Connecting,
		alert.Connected,
		alert.Disconnected,
	}, rec.statuses)
}

// TestClient_ConnectFailure shows DISCONNECTED after a failed attempt and keeps retrying.
func TestClient_ConnectFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{connectToken: completedToken(errTestBroker)}
	c, rec := newTestClient(t, api)

	c.Connect()

	require.Eventually(t, func() bool {
		return api.connectCount() >= 3
	}, time.Second, 5*time.Millisecond)

	c.Close(0)

	statuses := rec.seen()
	require.GreaterOrEqual(t, len(statuses), 4)
	require.Equal(t, alert.Connecting, statuses[0])
	require.Equal(t, alert.Disconnected, statuses[1])
	require.Equal(t, alert.Connecting, statuses[2])
	require.Equal(t, alert.Disconnected, statuses[len(statuses)-1])
	require.Equal(t, alert.Disconnected, c.Status())

	// No attempt starts once the client is closed.
	attempts := api.connectCount()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, attempts, api.connectCount())
}

// TestClient_ConnectSucceedsAfterRetry stops retrying once a session is up.
func TestClient_ConnectSucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{connectToken: completedToken(errTestBroker)}
	c, _ := newTestClient(t, api)

	c.Connect()

	require.Eventually(t, func() bool {
		return api.connectCount() >= 2
	}, time.Second, 5*time.Millisecond)

	api.mu.Lock()
	api.connectToken = completedToken(nil)
	api.mu.Unlock()

	// The loop settles after the first successful attempt.
	require.Eventually(t, func() bool {
		attempts := api.connectCount()
		time.Sleep(40 * time.Millisecond)

		return api.connectCount() == attempts
	}, time.Second, time.Millisecond)

	api.mu.Lock()
	api.open = true
	api.mu.Unlock()

	c.handleConnect(api)
	require.Equal(t, alert.Connected, c.Status())

	c.Close(0)
}

// TestClient_PublishRequiresConnection is a no-op while the session is down.
func TestClient_PublishRequiresConnection(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{connectToken: completedToken(nil)}
	c, _ := newTestClient(t, api)

	err := c.Publish(alert.DefaultControlTopic, alert.PayloadStop)
	require.ErrorIs(t, err, ErrNotConnected)
	require.Empty(t, api.published)

	api.open = true

	require.NoError(t, c.Publish(alert.DefaultControlTopic, alert.PayloadStop))

	api.publishErr = errTestBroker
	require.NoError(t, c.Publish(alert.DefaultControlTopic, alert.PayloadTestAlert))

	c.Close(0)

	require.Equal(t, []published{
		{topic: alert.DefaultControlTopic, qos: 1, payload: alert.PayloadStop},
		{topic: alert.DefaultControlTopic, qos: 1, payload: alert.PayloadTestAlert},
	}, api.published)
}

// TestClientOptions_BindsSettings verifies library options reflect the configuration.
func TestClientOptions_BindsSettings(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, &fakeAPI{})
	c.opts.Username = "dashboard"
	c.opts.Password = "secret"

	options := c.clientOptions()
	reader := mqtt.NewOptionsReader(options)

	require.Len(t, reader.Servers(), 1)
	require.Equal(t, "ws", reader.Servers()[0].Scheme)
	require.Equal(t, c.opts.ClientID, reader.ClientID())
	require.Equal(t, "dashboard", reader.Username())
	require.Equal(t, "secret", reader.Password())
	require.True(t, reader.AutoReconnect())
	require.False(t, reader.ConnectRetry())
	require.True(t, reader.CleanSession())
}
