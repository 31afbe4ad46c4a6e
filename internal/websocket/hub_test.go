package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
)

// mockConnection is an in-memory Connection whose reads block until closed.
type mockConnection struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newMockConnection() *mockConnection {
	return &mockConnection{closed: make(chan struct{})}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageType == websocket.TextMessage {
		m.written = append(m.written, append([]byte(nil), data...))
	}
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	<-m.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
}

func (m *mockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetReadLimit(int64)                {}
func (m *mockConnection) SetPongHandler(func(string) error) {}
func (m *mockConnection) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

func (m *mockConnection) messages(t *testing.T) []Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.written))
	for _, raw := range m.written {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestHubStartStop(t *testing.T) {
	hub := NewHub(quietLogger())

	hub.Start()
	hub.Start()
	assert.Equal(t, 0, hub.ClientCount())

	hub.Stop()
	hub.Stop()

	// a stopped hub drops broadcasts and refuses clients
	hub.Broadcast(context.Background(), TypeJobStatus, "ignored")
	client := NewClient(hub, newMockConnection(), "", config.WebSocketConfig{}, quietLogger())
	assert.False(t, hub.Register(client))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(quietLogger())
	hub.Start()
	defer hub.Stop()

	conn := newMockConnection()
	client := NewClient(hub, conn, "trace-1", config.WebSocketConfig{PingPeriod: time.Hour, PongWait: 2 * time.Hour}, quietLogger())
	require.True(t, hub.Register(client))
	go client.WritePump()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx := infrastructure.WithTraceID(context.Background(), "job-trace")
	hub.Broadcast(ctx, TypeJobProgress, map[string]int{"done": 3, "total": 10})

	require.Eventually(t, func() bool { return len(conn.messages(t)) == 2 }, time.Second, 5*time.Millisecond)
	msgs := conn.messages(t)
	assert.Equal(t, TypeConnection, msgs[0].Type)
	assert.Equal(t, TypeJobProgress, msgs[1].Type)
	assert.Equal(t, "job-trace", msgs[1].TraceID)
	assert.Equal(t, map[string]interface{}{"done": float64(3), "total": float64(10)}, msgs[1].Data)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewClient_KeepaliveDefaults(t *testing.T) {
	hub := NewHub(quietLogger())

	c := NewClient(hub, newMockConnection(), "", config.WebSocketConfig{}, nil)
	assert.Equal(t, 60*time.Second, c.pongWait)
	assert.Equal(t, 54*time.Second, c.pingPeriod)

	c = NewClient(hub, newMockConnection(), "", config.WebSocketConfig{PingPeriod: 2 * time.Minute, PongWait: time.Minute}, nil)
	assert.Less(t, c.pingPeriod, c.pongWait)
	assert.NotEmpty(t, c.ID())
}

func TestServeWS_EndToEnd(t *testing.T) {
	hub := NewHub(quietLogger())
	hub.Start()
	defer hub.Stop()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ServeWS(hub, conn, "ws-trace", config.WebSocketConfig{}, quietLogger())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, TypeConnection, hello.Type)
	assert.Equal(t, "ws-trace", hello.TraceID)

	hub.Broadcast(context.Background(), TypeJobStatus, map[string]string{"status": "completed"})

	var status Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, TypeJobStatus, status.Type)
}
