package notify

import (
	"sync"

	"personal-connect/internal/logger"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Alert is a user-facing toast: a title and a body.
type Alert struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Notifier interface {
	Notify(a Alert)
}

type Func func(a Alert)

func (f Func) Notify(a Alert) { f(a) }

// Log writes alerts to the log only.
func Log(log *logger.Logger) Notifier {
	return Func(func(a Alert) {
		log.Info("alert", "kind", a.Kind, "title", a.Title, "body", a.Body)
	})
}

// Recorder keeps every alert it receives.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Notify(a Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.alerts = nil
	r.mu.Unlock()
}
