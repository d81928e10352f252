package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"personal-connect/internal/repository"

	"github.com/google/uuid"
)

type entry struct {
	parent  string
	id      string
	seq     uint64
	data    map[string]interface{}
	updated time.Time
}

type watcher struct {
	path   string
	signal chan struct{}
}

// Store is an in-process DocumentStore. Writes and transactions are
// serialized; collection snapshots list documents in creation order.
type Store struct {
	writeMu sync.Mutex

	mu       sync.RWMutex
	docs     map[string]*entry
	seq      uint64
	watchers map[uint64]*watcher
	nextW    uint64
	writeErr error

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

func NewStore() *Store {
	return &Store{
		docs:     make(map[string]*entry),
		watchers: make(map[uint64]*watcher),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

var _ repository.DocumentStore = (*Store)(nil)

// FailWrites makes every following write return err until called with nil.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *Store) NewID() string {
	return uuid.NewString()
}

func (s *Store) Get(ctx context.Context, path string) (repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return repository.Document{}, err
	}
	if _, _, ok := repository.SplitPath(path); !ok {
		return repository.Document{}, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.document(path), nil
}

func (s *Store) Set(ctx context.Context, path string, data map[string]interface{}) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx repository.Tx) error {
		return tx.Set(path, data)
	})
}

func (s *Store) Update(ctx context.Context, path string, data map[string]interface{}) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx repository.Tx) error {
		return tx.Update(path, data)
	})
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{store: s, pending: map[string]map[string]interface{}{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if len(tx.order) == 0 {
		return nil
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *transaction) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	now := s.now().UTC()
	notify := map[string]bool{}
	for _, path := range tx.order {
		parent, id, _ := repository.SplitPath(path)
		data := resolve(tx.pending[path], now).(map[string]interface{})
		if e, ok := s.docs[path]; ok {
			e.data = data
			e.updated = now
		} else {
			s.seq++
			s.docs[path] = &entry{parent: parent, id: id, seq: s.seq, data: data, updated: now}
		}
		notify[path] = true
		notify[parent] = true
	}
	var signals []chan struct{}
	for _, w := range s.watchers {
		if notify[w.path] {
			signals = append(signals, w.signal)
		}
	}
	s.mu.Unlock()

	for _, sig := range signals {
		select {
		case sig <- struct{}{}:
		default:
		}
	}
	return nil
}

// document must be called with mu held.
func (s *Store) document(path string) repository.Document {
	e, ok := s.docs[path]
	if !ok {
		_, id, _ := repository.SplitPath(path)
		return repository.Document{ID: id, Path: path}
	}
	return repository.Document{
		ID:         e.id,
		Path:       path,
		Exists:     true,
		Data:       copyValue(e.data).(map[string]interface{}),
		UpdateTime: e.updated,
	}
}

func (s *Store) collection(path string) []repository.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*entry
	for _, e := range s.docs {
		if e.parent == path {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	docs := make([]repository.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, s.document(repository.Join(path, e.id)))
	}
	return docs
}

func (s *Store) List(ctx context.Context, path string) ([]repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return s.collection(path), nil
}

func (s *Store) WatchDocument(ctx context.Context, path string) (<-chan repository.DocumentEvent, error) {
	if _, _, ok := repository.SplitPath(path); !ok {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return watch(ctx, s, path, func() repository.DocumentEvent {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return repository.DocumentEvent{Doc: s.document(path)}
	}), nil
}

func (s *Store) WatchCollection(ctx context.Context, path string) (<-chan repository.CollectionEvent, error) {
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return watch(ctx, s, path, func() repository.CollectionEvent {
		return repository.CollectionEvent{Docs: s.collection(path)}
	}), nil
}

// watch registers a watcher and pumps snapshots until ctx is done. Signals
// coalesce, so a slow reader skips intermediate states but always ends on
// the latest one.
func watch[E any](ctx context.Context, s *Store, path string, snapshot func() E) <-chan E {
	w := &watcher{path: path, signal: make(chan struct{}, 1)}
	w.signal <- struct{}{}

	s.mu.Lock()
	s.nextW++
	key := s.nextW
	s.watchers[key] = w
	s.mu.Unlock()

	out := make(chan E)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.watchers, key)
			s.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-w.signal:
				select {
				case out <- snapshot():
				case <-ctx.Done():
					return
				case <-s.done:
					return
				}
			}
		}
	}()
	return out
}

func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type transaction struct {
	store   *Store
	pending map[string]map[string]interface{}
	order   []string
}

func (t *transaction) Get(path string) (repository.Document, error) {
	if len(t.order) > 0 {
		return repository.Document{}, fmt.Errorf("read after write in transaction: %s", path)
	}
	if _, _, ok := repository.SplitPath(path); !ok {
		return repository.Document{}, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.document(path), nil
}

func (t *transaction) Set(path string, data map[string]interface{}) error {
	if _, _, ok := repository.SplitPath(path); !ok {
		return fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	t.stage(path, copyValue(data).(map[string]interface{}))
	return nil
}

func (t *transaction) Update(path string, data map[string]interface{}) error {
	current, staged := t.pending[path]
	if !staged {
		t.store.mu.RLock()
		e, ok := t.store.docs[path]
		if ok {
			current = copyValue(e.data).(map[string]interface{})
		}
		t.store.mu.RUnlock()
		if !ok {
			return fmt.Errorf("update %s: %w", path, repository.ErrNotFound)
		}
	}
	for k, v := range data {
		current[k] = copyValue(v)
	}
	t.stage(path, current)
	return nil
}

func (t *transaction) stage(path string, data map[string]interface{}) {
	if _, ok := t.pending[path]; !ok {
		t.order = append(t.order, path)
	}
	t.pending[path] = data
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}

func resolve(v interface{}, now time.Time) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = resolve(val, now)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = resolve(val, now)
		}
		return t
	default:
		if repository.IsServerTimestamp(v) {
			return now
		}
		return v
	}
}
