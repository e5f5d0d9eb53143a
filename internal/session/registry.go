package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Registry holds one [Monitor] per signed-in session, keyed by session id.
// Sessions that time out or sign out are revoked and stay revoked.
type Registry struct {
	mu         sync.Mutex
	timeout    time.Duration
	warnBefore time.Duration
	monitors   map[string]*Monitor
	revoked    map[string]time.Time
	logger     *log.Logger
}

// NewRegistry creates a registry. timeout <= 0 disables idle expiry.
func NewRegistry(timeout, warnBefore time.Duration, logger *log.Logger) *Registry {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Registry{
		timeout:    timeout,
		warnBefore: warnBefore,
		monitors:   make(map[string]*Monitor),
		revoked:    make(map[string]time.Time),
		logger:     shared.WithLogger(logger, "component", "session"),
	}
}

// Touch records activity for id, starting a monitor on first sight.
// It returns [shared.ErrSessionExpired] for revoked sessions.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	if _, ok := r.revoked[id]; ok {
		r.mu.Unlock()
		return shared.ErrSessionExpired
	}

	m, ok := r.monitors[id]
	if !ok {
		m = NewMonitor(Options{
			Timeout:    r.timeout,
			WarnBefore: r.warnBefore,
			OnWarn: func(remaining time.Duration) {
				r.logger.Debug("session idle", "session", id, "remaining", remaining)
			},
			OnTimeout: func() { r.expire(id) },
		})
		r.monitors[id] = m
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if m.Expired() {
		r.expire(id)
		return shared.ErrSessionExpired
	}
	m.Touch()
	return nil
}

// Remaining reports the idle time left for id.
func (r *Registry) Remaining(id string) time.Duration {
	r.mu.Lock()
	m, ok := r.monitors[id]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return m.Remaining()
}

// Revoke ends a session, as on sign-out.
func (r *Registry) Revoke(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitors[id]; ok {
		m.Destroy()
		delete(r.monitors, id)
	}
	r.revoked[id] = time.Now()
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}

// Close stops every monitor.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.monitors {
		m.Destroy()
		delete(r.monitors, id)
	}
}

func (r *Registry) expire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.monitors[id]; ok {
		m.Destroy()
		delete(r.monitors, id)
		r.revoked[id] = time.Now()
		r.logger.Info("session expired", "session", id)
	}
}
