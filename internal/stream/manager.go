// Package stream manages the pose-stream connection of one analysis session:
// it connects to the streaming server for a visit, keeps the most recent
// analysis payload, and retries abnormal closures with linear backoff.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/pkg/logger"
	"github.com/humanplus/posture-console/pkg/metrics"
)

const (
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxAttempts = 5
)

// ErrVisitRequired is returned by Connect and Reconnect for an empty visit id.
var ErrVisitRequired = errors.New("visit id is required")

type Config struct {
	// BaseURL is the stream endpoint root, e.g. ws://localhost:8000/ws.
	BaseURL     string
	BaseDelay   time.Duration
	MaxAttempts int
}

// Status is a consistent snapshot of the manager's observable state.
type Status struct {
	State       State                `json:"state"`
	Connected   bool                 `json:"connected"`
	VisitID     string               `json:"visit_id,omitempty"`
	Attempts    int                  `json:"attempts"`
	MaxAttempts int                  `json:"max_attempts"`
	LastError   *string              `json:"last_error"`
	LastPayload *model.StreamPayload `json:"last_payload"`
}

type Option func(*Manager)

// WithScheduler replaces the timer used for reconnect delays.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.schedule = s }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l.With("stream") }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns at most one live connection at a time.
type Manager struct {
	cfg      Config
	dialer   Dialer
	schedule Scheduler
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu          sync.Mutex
	state       State
	gen         uint64
	conn        Conn
	visitID     string
	connected   bool
	attempts    int
	lastPayload *model.StreamPayload
	lastError   *string
	cancelRetry func()
	subs        map[chan *model.StreamPayload]struct{}
}

func NewManager(cfg Config, dialer Dialer, opts ...Option) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		schedule: TimerScheduler,
		log:      logger.Nop(),
		metrics:  metrics.Nop(),
		subs:     make(map[chan *model.StreamPayload]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// URL returns the stream address for a visit.
func (m *Manager) URL(visitID string) string {
	return fmt.Sprintf("%s/pose-stream/%s", m.cfg.BaseURL, visitID)
}

// Connect opens a stream for visitID, replacing any tracked connection.
// Overlapping calls are last-writer-wins: events of the superseded
// connection are ignored.
func (m *Manager) Connect(visitID string) error {
	if visitID == "" {
		return ErrVisitRequired
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.stopRetryLocked()
	m.state, _ = next(m.state, eventConnect)
	m.visitID = visitID
	m.lastError = nil
	previous := m.conn
	m.conn = nil
	if previous != nil {
		m.connected = false
		m.metrics.StreamConnected.Set(0)
	}
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(CloseNormalClosure, disconnectReason); err != nil {
			m.log.Debug("close of superseded connection failed", "error", err.Error())
		}
	}

	url := m.URL(visitID)
	m.log.Info("connecting to pose stream", "url", url, "visit_id", visitID)

	conn, err := m.dialer.Dial(url, m.events(gen))
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.state = StateIdle
			m.setErrorLocked(fmt.Sprintf("unable to create stream connection: %v", err))
		}
		m.mu.Unlock()
		m.log.Error(err, "failed to create stream connection", "visit_id", visitID)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || (m.state != StateConnecting && m.state != StateOpen) {
		// Superseded or already closed while dialing.
		if m.gen != gen {
			_ = conn.Close(CloseNormalClosure, disconnectReason)
		}
		return nil
	}
	m.conn = conn
	return nil
}

// Disconnect closes the tracked connection with a normal close code and
// stops automatic reconnection until the next Reconnect. It is a no-op when
// there is neither a connection nor a pending retry.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.conn == nil && m.cancelRetry == nil && m.state != StateConnecting && m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	m.gen++
	m.stopRetryLocked()
	m.state, _ = next(m.state, eventDisconnect)
	m.connected = false
	m.lastPayload = nil
	m.attempts = m.cfg.MaxAttempts
	m.metrics.StreamConnected.Set(0)
	visitID := m.visitID
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(CloseNormalClosure, disconnectReason); err != nil {
			m.log.Warn("stream close failed", "visit_id", visitID, "error", err.Error())
		}
	}
	m.log.Info("stream disconnected", "visit_id", visitID)
}

// Reconnect disconnects, resets the attempt counter and connects again.
func (m *Manager) Reconnect(visitID string) error {
	if visitID == "" {
		return ErrVisitRequired
	}
	m.Disconnect()
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
	return m.Connect(visitID)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Manager) LastPayload() *model.StreamPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPayload
}

// LastError returns the most recent error message, or "" when there is none.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastError == nil {
		return ""
	}
	return *m.lastError
}

func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Manager) VisitID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visitID
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:       m.state,
		Connected:   m.connected,
		VisitID:     m.visitID,
		Attempts:    m.attempts,
		MaxAttempts: m.cfg.MaxAttempts,
		LastPayload: m.lastPayload,
	}
	if m.lastError != nil {
		msg := *m.lastError
		st.LastError = &msg
	}
	return st
}

// Subscribe returns a channel that always holds the latest payload only.
// A slow reader skips intermediate payloads. The returned func unsubscribes.
func (m *Manager) Subscribe() (<-chan *model.StreamPayload, func()) {
	ch := make(chan *model.StreamPayload, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	if m.lastPayload != nil {
		ch <- m.lastPayload
	}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) events(gen uint64) Events {
	return Events{
		OnOpen:    func() { m.handleOpen(gen) },
		OnMessage: func(data []byte) { m.handleMessage(gen, data) },
		OnError:   func(err error) { m.handleError(gen, err) },
		OnClose:   func(code int, reason string, clean bool) { m.handleClose(gen, code, reason, clean) },
	}
}

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	st, ok := next(m.state, eventOpen)
	if !ok {
		return
	}
	m.state = st
	m.connected = true
	m.attempts = 0
	m.metrics.StreamConnected.Set(1)
	m.log.Info("pose stream connected", "visit_id", m.visitID)
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if _, ok := next(m.state, eventMessage); !ok {
		return
	}
	m.metrics.StreamMessages.Inc()

	payload, err := DecodePayload(data)
	if err != nil {
		m.metrics.StreamDecodeFailures.Inc()
		m.setErrorLocked("error parsing stream data")
		m.log.Warn("failed to decode stream message", "visit_id", m.visitID, "error", err.Error())
		return
	}
	m.lastPayload = payload
	m.publishLocked(payload)
}

func (m *Manager) handleError(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.connected = false
	m.metrics.StreamConnected.Set(0)
	m.setErrorLocked("stream connection error")
	m.log.Error(err, "pose stream error", "visit_id", m.visitID)
}

func (m *Manager) handleClose(gen uint64, code int, reason string, clean bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}

	ev := eventAbnormalClose
	if clean && code == CloseNormalClosure {
		ev = eventCleanClose
	}
	st, ok := next(m.state, ev)
	if !ok {
		return
	}
	m.state = st
	m.conn = nil
	m.connected = false
	m.metrics.StreamConnected.Set(0)
	m.log.Info("pose stream closed", "visit_id", m.visitID, "code", code, "reason", reason, "clean", clean)

	if ev == eventCleanClose {
		return
	}
	if m.attempts >= m.cfg.MaxAttempts {
		m.log.Warn("reconnect attempts exhausted", "visit_id", m.visitID, "attempts", m.attempts)
		return
	}

	m.attempts++
	delay := m.cfg.BaseDelay * time.Duration(m.attempts)
	visitID := m.visitID
	m.metrics.StreamReconnects.Inc()
	m.log.Info("scheduling reconnect", "visit_id", visitID, "attempt", m.attempts, "max_attempts", m.cfg.MaxAttempts, "delay", delay.String())
	m.cancelRetry = m.schedule(delay, func() { m.retry(gen, visitID) })
}

// retry runs a scheduled reconnect unless something else touched the
// connection since it was scheduled.
func (m *Manager) retry(gen uint64, visitID string) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateClosedAbnormal {
		m.mu.Unlock()
		return
	}
	m.cancelRetry = nil
	m.mu.Unlock()

	if err := m.Connect(visitID); err != nil {
		m.log.Error(err, "scheduled reconnect failed", "visit_id", visitID)
	}
}

func (m *Manager) stopRetryLocked() {
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
}

func (m *Manager) setErrorLocked(msg string) {
	m.lastError = &msg
}

func (m *Manager) publishLocked(p *model.StreamPayload) {
	for ch := range m.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}
