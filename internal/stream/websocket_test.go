package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func newStreamServer(t *testing.T, handle func(*websocket.Conn, *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebsocket_ReceivesPayloadThenCleanClose(t *testing.T) {
	paths := make(chan string, 1)
	base := newStreamServer(t, func(ws *websocket.Conn, r *http.Request) {
		paths <- r.URL.Path
		assert.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(samplePayload)))
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		_, _, _ = ws.ReadMessage()
	})

	s := &manualScheduler{}
	m := NewManager(Config{BaseURL: base}, NewWebsocketDialer(time.Second), WithScheduler(s.Schedule))
	require.NoError(t, m.Connect("v1"))

	assert.Equal(t, "/ws/pose-stream/v1", <-paths)
	assert.Eventually(t, func() bool { return m.State() == StateClosedClean }, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, m.LastPayload())
	assert.Equal(t, "v1", m.LastPayload().VisitID)
	assert.False(t, m.Connected())
	assert.Empty(t, s.pending())
}

func TestWebsocket_DroppedConnectionSchedulesRetry(t *testing.T) {
	base := newStreamServer(t, func(ws *websocket.Conn, _ *http.Request) {
		ws.UnderlyingConn().Close()
	})

	s := &manualScheduler{}
	m := NewManager(Config{BaseURL: base}, NewWebsocketDialer(time.Second), WithScheduler(s.Schedule))
	require.NoError(t, m.Connect("v1"))

	assert.Eventually(t, func() bool { return len(s.pending()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateClosedAbnormal, m.State())
	assert.Equal(t, 1, m.Attempts())
}

func TestWebsocket_HandshakeFailureIsAbnormal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	s := &manualScheduler{}
	m := NewManager(Config{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, NewWebsocketDialer(time.Second), WithScheduler(s.Schedule))
	require.NoError(t, m.Connect("v1"))

	assert.Eventually(t, func() bool { return m.State() == StateClosedAbnormal }, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, m.LastError())
	assert.Len(t, s.pending(), 1)
}

func TestWebsocket_DisconnectSendsNormalClosure(t *testing.T) {
	closes := make(chan *websocket.CloseError, 1)
	base := newStreamServer(t, func(ws *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closes <- ce
				}
				return
			}
		}
	})

	m := NewManager(Config{BaseURL: base}, NewWebsocketDialer(time.Second))
	require.NoError(t, m.Connect("v1"))
	require.Eventually(t, m.Connected, 2*time.Second, 10*time.Millisecond)

	m.Disconnect()

	select {
	case ce := <-closes:
		assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
		assert.Equal(t, "client-requested", ce.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive a close frame")
	}
	assert.Equal(t, StateClosedClean, m.State())
	assert.Equal(t, DefaultMaxAttempts, m.Attempts())
}
