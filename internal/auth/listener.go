package auth

import (
	"sync"

	"github.com/humanplus/posture-console/internal/model"
)

// SessionEvent reports a change of the signed-in operator. User is nil
// after sign-out.
type SessionEvent struct {
	User *model.User
}

// Listener fans session changes out to subscribers. It is created once at
// startup and closed at shutdown.
type Listener struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	current *model.User
	closed  bool
}

func NewListener() *Listener {
	return &Listener{subs: make(map[*Subscription]struct{})}
}

// Subscribe returns a subscription primed with the current session.
func (l *Listener) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan SessionEvent, 1), l: l}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(s.ch)
		s.done = true
		return s
	}
	l.subs[s] = struct{}{}
	s.ch <- SessionEvent{User: l.current}
	return s
}

// Current returns the most recently signed-in operator, or nil.
func (l *Listener) Current() *model.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Listener) publish(u *model.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.current = u
	ev := SessionEvent{User: u}
	for s := range l.subs {
		s.send(ev)
	}
}

// Close ends every subscription.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for s := range l.subs {
		s.closeLocked()
	}
	l.subs = nil
}

// Subscription delivers the latest SessionEvent only; a slow reader skips
// intermediate changes.
type Subscription struct {
	ch   chan SessionEvent
	l    *Listener
	done bool
}

func (s *Subscription) Events() <-chan SessionEvent {
	return s.ch
}

func (s *Subscription) Close() {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.done {
		return
	}
	delete(s.l.subs, s)
	s.closeLocked()
}

func (s *Subscription) send(ev SessionEvent) {
	select {
	case s.ch <- ev:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (s *Subscription) closeLocked() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
