package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/repository"

	"github.com/lib/pq"
)

// hub fans pg_notify events out to the watchers of the touched document
// and of its parent collection.
type hub struct {
	listener *pq.Listener
	log      *logger.Logger

	mu       sync.Mutex
	watchers map[uint64]*watcher
	next     uint64

	done chan struct{}
	once sync.Once
}

type watcher struct {
	path   string
	signal chan struct{}
}

func newHub(dsn string, log *logger.Logger) (*hub, error) {
	h := &hub{
		log:      log,
		watchers: make(map[uint64]*watcher),
		done:     make(chan struct{}),
	}
	h.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", "event", ev, "error", err)
		}
	})
	if err := h.listener.Listen(notifyChannel); err != nil {
		_ = h.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	go h.run()
	return h, nil
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			return
		case n, ok := <-h.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// reconnected; notifications may have been lost
				h.broadcast(func(string) bool { return true })
				continue
			}
			path := n.Extra
			parent, _, _ := repository.SplitPath(path)
			h.broadcast(func(p string) bool { return p == path || p == parent })
		case <-time.After(90 * time.Second):
			go func() {
				if err := h.listener.Ping(); err != nil {
					h.log.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (h *hub) broadcast(match func(path string) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if match(w.path) {
			select {
			case w.signal <- struct{}{}:
			default:
			}
		}
	}
}

func (h *hub) subscribe(path string) (*watcher, func()) {
	w := &watcher{path: path, signal: make(chan struct{}, 1)}
	w.signal <- struct{}{}
	h.mu.Lock()
	h.next++
	key := h.next
	h.watchers[key] = w
	h.mu.Unlock()
	return w, func() {
		h.mu.Lock()
		delete(h.watchers, key)
		h.mu.Unlock()
	}
}

func (h *hub) close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.listener.Close()
	})
	return err
}

func watch[E any](ctx context.Context, h *hub, path string, snapshot func() E) <-chan E {
	w, unsubscribe := h.subscribe(path)
	out := make(chan E)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-w.signal:
				ev := snapshot()
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-h.done:
					return
				}
			}
		}
	}()
	return out
}
