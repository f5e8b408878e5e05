package stream

import (
	"time"
)

const (
	// CloseNormalClosure is the close code sent by Disconnect.
	CloseNormalClosure = 1000
	// CloseAbnormalClosure is reported when the transport drops without a close frame.
	CloseAbnormalClosure = 1006

	disconnectReason = "client-requested"
)

// Conn is a connection handle returned by a Dialer before the handshake completes.
type Conn interface {
	Close(code int, reason string) error
}

// Events receives the transport notifications of a single connection, in order.
// OnClose is always the last call.
type Events struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int, reason string, clean bool)
}

// Dialer starts a connection to url without waiting for the handshake.
type Dialer interface {
	Dial(url string, ev Events) (Conn, error)
}

// Scheduler runs fn once after d and returns a function that cancels it.
// fn must not be invoked before the Scheduler call returns.
type Scheduler func(d time.Duration, fn func()) (cancel func())

// TimerScheduler schedules on the runtime timer.
func TimerScheduler(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
