package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

// WebsocketDialer dials the stream server with gorilla/websocket. The
// handshake and the read loop run on their own goroutine.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	d := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		d.HandshakeTimeout = handshakeTimeout
	}
	return &WebsocketDialer{Dialer: &d}
}

func (d *WebsocketDialer) Dial(url string, ev Events) (Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{cancel: cancel}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	go c.run(ctx, dialer, url, d.Header, ev)
	return c, nil
}

type wsConn struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	ws      *websocket.Conn
	closing bool
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header, ev Events) {
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			ev.OnClose(CloseNormalClosure, disconnectReason, true)
			return
		}
		ev.OnError(err)
		ev.OnClose(CloseAbnormalClosure, err.Error(), false)
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ws.Close()
		ev.OnClose(CloseNormalClosure, disconnectReason, true)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ev.OnOpen()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			code, reason, clean := c.classify(err)
			if !clean && code == CloseAbnormalClosure {
				ev.OnError(err)
			}
			ws.Close()
			ev.OnClose(code, reason, clean)
			return
		}
		if mt == websocket.TextMessage {
			ev.OnMessage(data)
		}
	}
}

func (c *wsConn) classify(err error) (int, string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, ce.Code == websocket.CloseNormalClosure
	}
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return CloseNormalClosure, disconnectReason, true
	}
	return CloseAbnormalClosure, err.Error(), false
}

// Close sends a close frame with code and reason and tears the connection
// down. A handshake still in flight is cancelled.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	werr := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	cerr := ws.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return cerr
}
