package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Danger  Severity = "danger"
)

const DefaultTTL = 5 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Sink keeps the currently visible notifications. Each one expires on its own
// timer; Notify never blocks on delivery.
type Sink struct {
	logger *slog.Logger
	ttl    time.Duration
	onNew  func(Severity)

	mu     sync.Mutex
	order  []string
	active map[string]*entry
	closed bool
}

func NewSink(logger *slog.Logger, ttl time.Duration) *Sink {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		logger: logger,
		ttl:    ttl,
		active: make(map[string]*entry),
	}
}

// OnNotify registers a hook called for every new notification.
func (s *Sink) OnNotify(fn func(Severity)) {
	s.mu.Lock()
	s.onNew = fn
	s.mu.Unlock()
}

// Notify shows message until it expires or is dismissed.
func (s *Sink) Notify(message string, severity Severity) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return n
	}
	e := &entry{n: n}
	s.active[n.ID] = e
	s.order = append(s.order, n.ID)
	e.timer = time.AfterFunc(s.ttl, func() { s.remove(n.ID) })
	hook := s.onNew
	s.mu.Unlock()

	s.logger.Debug("notification raised", "id", n.ID, "severity", string(severity), "message", message)
	if hook != nil {
		hook(severity)
	}
	return n
}

// Dismiss removes a notification before it expires. It reports whether the
// notification was still visible.
func (s *Sink) Dismiss(id string) bool {
	return s.remove(id)
}

func (s *Sink) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.active[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.active, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Active returns the visible notifications, oldest first.
func (s *Sink) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.active[id].n)
	}
	return out
}

// Close stops every pending expiry timer and drops all notifications.
// Later calls to Notify are accepted but not shown.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.active {
		e.timer.Stop()
		delete(s.active, id)
	}
	s.order = nil
	s.closed = true
}
