package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/oshokin/cucoon/internal/broadcast"
	"github.com/oshokin/cucoon/internal/domain/alert"
)

// fakeService keeps a snapshot and publishes every change to its broker.
type fakeService struct {
	mu       sync.Mutex
	snapshot alert.Snapshot
	broker   *broadcast.Broker[alert.Snapshot]
	err      error
}

func newFakeService() *fakeService {
	return &fakeService{broker: broadcast.NewBroker[alert.Snapshot]()}
}

func (f *fakeService) Snapshot() *alert.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.snapshot.Clone()
}

func (f *fakeService) Subscribe() *broadcast.Subscription[alert.Snapshot] {
	return f.broker.Subscribe()
}

func (f *fakeService) StopSiren(context.Context) (*alert.Snapshot, error) {
	return f.set(alert.StateSafe, alert.SourceLocalStop)
}

func (f *fakeService) TriggerTestAlert(context.Context) (*alert.Snapshot, error) {
	return f.set(alert.StateAlert, alert.SourceLocalTest)
}

func (f *fakeService) TriggerTestSafe(context.Context) (*alert.Snapshot, error) {
	return f.set(alert.StateSafe, alert.SourceLocalSafe)
}

func (f *fakeService) UnlockAudio(context.Context) (*alert.Snapshot, error) {
	f.mu.Lock()
	state, source := f.snapshot.State, f.snapshot.LastSource
	f.mu.Unlock()

	return f.set(state, source)
}

func (f *fakeService) set(state alert.State, source alert.Source) (*alert.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	f.snapshot.Revision++
	f.snapshot.State = state
	f.snapshot.LastSource = source
	f.snapshot.AlarmPlaying = state == alert.StateAlert
	snapshot := f.snapshot
	f.mu.Unlock()

	f.broker.Publish(snapshot)

	return &snapshot, nil
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) alert.Snapshot {
	t.Helper()

	var snapshot alert.Snapshot

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))

	return snapshot
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	return rec
}

func TestRouter_Page(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{})

	rec := serve(h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "CuCoon")
	require.Contains(t, rec.Body.String(), "/api/ws")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{})

	rec := serve(h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

// TestRouter_Actions drives each POST action and reads the state back.
func TestRouter_Actions(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{})

	rec := serve(h, http.MethodPost, "/api/alert/test")
	require.Equal(t, http.StatusOK, rec.Code)

	snapshot := decodeSnapshot(t, rec)
	require.Equal(t, alert.StateAlert, snapshot.State)
	require.True(t, snapshot.AlarmPlaying)

	rec = serve(h, http.MethodPost, "/api/audio/unlock")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alert.StateAlert, decodeSnapshot(t, rec).State)

	rec = serve(h, http.MethodPost, "/api/siren/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alert.SourceLocalStop, decodeSnapshot(t, rec).LastSource)

	rec = serve(h, http.MethodPost, "/api/alert/safe")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alert.SourceLocalSafe, decodeSnapshot(t, rec).LastSource)

	rec = serve(h, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)

	snapshot = decodeSnapshot(t, rec)
	require.Equal(t, alert.StateSafe, snapshot.State)
	require.EqualValues(t, 4, snapshot.Revision)
}

func TestRouter_ActionsRequirePost(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{})

	rec := serve(h, http.MethodGet, "/api/siren/stop")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Unavailable(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	service.err = alert.ErrUnavailable

	h := NewRouter(context.Background(), service, Options{})

	rec := serve(h, http.MethodPost, "/api/siren/stop")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), alert.ErrUnavailable.Error())
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{ActionsPerMinute: 1})

	rec := serve(h, http.MethodPost, "/api/alert/test")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodPost, "/api/alert/safe")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are never limited.
	rec = serve(h, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestRouter_RateLimitDisabled checks a negative limit serves every action.
func TestRouter_RateLimitDisabled(t *testing.T) {
	t.Parallel()

	h := NewRouter(context.Background(), newFakeService(), Options{ActionsPerMinute: -1})

	for range 100 {
		rec := serve(h, http.MethodPost, "/api/alert/test")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

// TestRouter_Stream receives the initial snapshot and a later change over WebSocket.
func TestRouter_Stream(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	server := httptest.NewServer(NewRouter(context.Background(), service, Options{}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	defer conn.Close(websocket.StatusNormalClosure, "")

	var snapshot alert.Snapshot

	require.NoError(t, wsjson.Read(ctx, conn, &snapshot))
	require.Equal(t, alert.StateSafe, snapshot.State)

	// The subscription is registered before the first write, so this change is delivered.
	_, err = service.TriggerTestAlert(ctx)
	require.NoError(t, err)

	require.NoError(t, wsjson.Read(ctx, conn, &snapshot))
	require.Equal(t, alert.StateAlert, snapshot.State)
	require.EqualValues(t, 1, snapshot.Revision)
}

// TestRouter_StreamClosesOnShutdown checks clients get a going-away close once updates end.
func TestRouter_StreamClosesOnShutdown(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	server := httptest.NewServer(NewRouter(context.Background(), service, Options{}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	defer conn.Close(websocket.StatusNormalClosure, "")

	var snapshot alert.Snapshot

	require.NoError(t, wsjson.Read(ctx, conn, &snapshot))

	service.broker.Close()

	err = wsjson.Read(ctx, conn, &snapshot)
	require.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
