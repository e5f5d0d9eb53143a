// package session tracks user inactivity and expires idle sessions.
package session

import (
	"sync"
	"time"
)

// Options configure a [Monitor].
type Options struct {
	Timeout    time.Duration // idle time before the session expires
	WarnBefore time.Duration // how long before expiry OnWarn fires; zero disables the warning
	OnWarn     func(remaining time.Duration)
	OnTimeout  func()
	// OnActivity observes every Touch, e.g. to persist the last-activity timestamp.
	OnActivity func(at time.Time)
}

// Monitor keeps a rolling last-activity timestamp and two timers (warning and expiry)
// that are re-armed on every [Monitor.Touch].
type Monitor struct {
	mu        sync.Mutex
	opts      Options
	now       func() time.Time
	last      time.Time
	warn      *time.Timer
	expire    *time.Timer
	expired   bool
	destroyed bool
}

// NewMonitor starts a monitor with activity recorded now.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{opts: opts, now: time.Now}
	m.Touch()
	return m
}

// Touch records activity and re-arms both timers. It is a no-op once expired or destroyed.
func (m *Monitor) Touch() {
	m.mu.Lock()
	if m.expired || m.destroyed {
		m.mu.Unlock()
		return
	}
	m.last = m.now()
	m.arm()
	at, hook := m.last, m.opts.OnActivity
	m.mu.Unlock()

	if hook != nil {
		hook(at)
	}
}

// Reset clears an expiry and starts a fresh idle window, as after the user signs in again.
func (m *Monitor) Reset() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.expired = false
	m.mu.Unlock()
	m.Touch()
}

// Destroy stops both timers permanently.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.stop()
}

// LastActivity returns the time of the most recent Touch.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Remaining returns the time left before expiry, or zero once expired.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired || m.destroyed {
		return 0
	}
	return max(m.opts.Timeout-m.now().Sub(m.last), 0)
}

// Expired reports whether the idle timeout has elapsed.
func (m *Monitor) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return true
	}
	return m.opts.Timeout > 0 && m.now().Sub(m.last) >= m.opts.Timeout
}

// arm (re)starts the timers; m.mu must be held.
func (m *Monitor) arm() {
	m.stop()
	if m.opts.Timeout <= 0 {
		return
	}

	if w := m.opts.WarnBefore; w > 0 && w < m.opts.Timeout {
		m.warn = time.AfterFunc(m.opts.Timeout-w, m.fireWarn)
	}
	m.expire = time.AfterFunc(m.opts.Timeout, m.fireTimeout)
}

func (m *Monitor) stop() {
	if m.warn != nil {
		m.warn.Stop()
		m.warn = nil
	}
	if m.expire != nil {
		m.expire.Stop()
		m.expire = nil
	}
}

func (m *Monitor) fireWarn() {
	m.mu.Lock()
	if m.expired || m.destroyed {
		m.mu.Unlock()
		return
	}
	remaining := max(m.opts.Timeout-m.now().Sub(m.last), 0)
	hook := m.opts.OnWarn
	m.mu.Unlock()

	if hook != nil {
		hook(remaining)
	}
}

func (m *Monitor) fireTimeout() {
	m.mu.Lock()
	if m.expired || m.destroyed {
		m.mu.Unlock()
		return
	}
	// a Touch may have raced the timer
	if m.now().Sub(m.last) < m.opts.Timeout {
		m.mu.Unlock()
		return
	}
	m.expired = true
	m.stop()
	hook := m.opts.OnTimeout
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
}
