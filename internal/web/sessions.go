package web

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"personal-connect/internal/notify"
	"personal-connect/internal/service"

	"github.com/google/uuid"
)

const alertBacklog = 64

type sequencedAlert struct {
	seq   uint64
	alert notify.Alert
}

// alertFeed is the notifier of one HTTP client. It keeps the latest alerts
// so that a WebSocket reader can catch up after a coalesced signal.
type alertFeed struct {
	mu     sync.Mutex
	seq    uint64
	items  []sequencedAlert
	signal *service.Broadcaster[uint64]
}

func newAlertFeed() *alertFeed {
	return &alertFeed{signal: service.NewBroadcaster[uint64]()}
}

func (f *alertFeed) Notify(a notify.Alert) {
	f.mu.Lock()
	f.seq++
	f.items = append(f.items, sequencedAlert{seq: f.seq, alert: a})
	if len(f.items) > alertBacklog {
		f.items = f.items[len(f.items)-alertBacklog:]
	}
	seq := f.seq
	f.mu.Unlock()
	f.signal.Publish(seq)
}

// since returns the alerts after seq and the newest sequence number.
func (f *alertFeed) since(seq uint64) ([]notify.Alert, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Alert
	for _, it := range f.items {
		if it.seq > seq {
			out = append(out, it.alert)
		}
	}
	return out, f.seq
}

func (f *alertFeed) last() (notify.Alert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return notify.Alert{}, false
	}
	return f.items[len(f.items)-1].alert, true
}

// watch signals every new alert. Alerts up to the returned sequence number
// are not signalled.
func (f *alertFeed) watch(ctx context.Context) (<-chan uint64, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signal.Subscribe(ctx, f.seq), f.seq
}

type entry struct {
	token  string
	client service.Client
	alerts *alertFeed

	lastUsed atomic.Int64 // unix nanos
	streams  atomic.Int32
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// idle reports whether nobody used the entry for ttl. An open stream keeps
// it alive.
func (e *entry) idle(now time.Time, ttl time.Duration) bool {
	if e.streams.Load() > 0 {
		return false
	}
	return now.Sub(time.Unix(0, e.lastUsed.Load())) > ttl
}

func (e *entry) close() {
	e.client.Close()
	e.alerts.signal.Close()
}

// sessions maps bearer tokens to client bundles.
type sessions struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newSessions() *sessions {
	return &sessions{entries: make(map[string]*entry)}
}

func (s *sessions) add(c service.Client, alerts *alertFeed) *entry {
	e := &entry{token: uuid.NewString(), client: c, alerts: alerts}
	e.touch(time.Now())
	s.mu.Lock()
	s.entries[e.token] = e
	s.mu.Unlock()
	return e
}

func (s *sessions) get(token string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[token]
	return e, ok
}

func (s *sessions) remove(token string) {
	s.mu.Lock()
	e, ok := s.entries[token]
	delete(s.entries, token)
	s.mu.Unlock()
	if ok {
		e.close()
	}
}

// sweep closes the entries idle for longer than ttl and returns how many
// went away.
func (s *sessions) sweep(now time.Time, ttl time.Duration) int {
	var stale []*entry
	s.mu.Lock()
	for token, e := range s.entries {
		if e.idle(now, ttl) {
			stale = append(stale, e)
			delete(s.entries, token)
		}
	}
	s.mu.Unlock()
	for _, e := range stale {
		e.close()
	}
	return len(stale)
}

func (s *sessions) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
	for _, e := range entries {
		e.close()
	}
}
