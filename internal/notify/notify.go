// Package notify surfaces transient, auto-dismissing user notifications.
// Every boundary failure in the engine ends here; nothing propagates
// uncaught to the interaction loop.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexatlas/engine/internal/fault"
)

// Severity of a notification.
type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is one transient message shown to the user.
type Notification struct {
	ID        uuid.UUID
	Severity  Severity
	Message   string
	CreatedAt time.Time
}

// Notifier is the sink the engine publishes into.
type Notifier interface {
	Publish(sev Severity, msg string)
}

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Hub keeps the set of currently visible notifications and expires them
// after a TTL.
type Hub struct {
	ttl  time.Duration
	log  *slog.Logger
	show func(Notification)

	mu     sync.Mutex
	active map[uuid.UUID]Notification
}

// NewHub creates a hub. show may be nil; it is invoked for each published
// notification so a frontend can display it.
func NewHub(ttl time.Duration, log *slog.Logger, show func(Notification)) *Hub {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		ttl:    ttl,
		log:    log,
		show:   show,
		active: make(map[uuid.UUID]Notification),
	}
}

// Publish shows a notification and schedules its dismissal.
func (h *Hub) Publish(sev Severity, msg string) {
	n := Notification{
		ID:        uuid.New(),
		Severity:  sev,
		Message:   msg,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.active[n.ID] = n
	h.mu.Unlock()

	h.log.Info("Notification", "severity", sev.String(), "message", msg)
	if h.show != nil {
		h.show(n)
	}

	time.AfterFunc(h.ttl, func() {
		h.mu.Lock()
		delete(h.active, n.ID)
		h.mu.Unlock()
	})
}

// Active returns the notifications currently visible.
func (h *Hub) Active() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notification, 0, len(h.active))
	for _, n := range h.active {
		out = append(out, n)
	}
	return out
}

// Failure publishes an error with a severity derived from its fault kind.
// Declined confirmations are informational, everything else is an error.
func Failure(n Notifier, err error) {
	if err == nil {
		return
	}
	sev := Error
	if fault.KindOf(err) == fault.UserAbort {
		sev = Info
	}
	n.Publish(sev, err.Error())
}

// Recorder is a Notifier that captures messages for tests.
type Recorder struct {
	mu    sync.Mutex
	Items []Notification
}

// Publish records the notification.
func (r *Recorder) Publish(sev Severity, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, Notification{
		ID:        uuid.New(),
		Severity:  sev,
		Message:   msg,
		CreatedAt: time.Now(),
	})
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Items) == 0 {
		return Notification{}, false
	}
	return r.Items[len(r.Items)-1], true
}

// Len returns how many notifications were published.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Items)
}
