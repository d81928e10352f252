package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"
	"personal-connect/internal/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type store struct {
	client *firestore.Client
	log    *logger.Logger
}

func New(ctx context.Context, cfg config.FirebaseConfig, log *logger.Logger) (repository.DocumentStore, error) {
	if cfg.EmulatorHost != "" {
		// the client library reads the emulator address from the environment
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return nil, err
		}
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	log.Info("connected to Firestore", "project", cfg.ProjectID, "emulator", cfg.EmulatorHost != "")
	return NewWithClient(client, log), nil
}

func NewWithClient(client *firestore.Client, log *logger.Logger) repository.DocumentStore {
	return &store{client: client, log: log.With("store", "firestore")}
}

func (s *store) NewID() string {
	return s.client.Collection(repository.RootStudents).NewDoc().ID
}

func (s *store) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, ok := repository.SplitPath(path); !ok {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return ref, nil
}

func (s *store) Get(ctx context.Context, path string) (repository.Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return repository.Document{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return repository.Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return toDocument(path, snap), nil
}

func (s *store) Set(ctx context.Context, path string, data map[string]interface{}) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, toFirestore(data)); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *store) Update(ctx context.Context, path string, data map[string]interface{}) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates(data)); err != nil {
		return mapErr("update "+path, err)
	}
	return nil
}

func (s *store) List(ctx context.Context, path string) ([]repository.Document, error) {
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	snaps, err := s.client.Collection(path).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	docs := make([]repository.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(repository.Join(path, snap.Ref.ID), snap))
	}
	return docs, nil
}

func (s *store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &transaction{store: s, tx: ftx})
	})
	if err != nil {
		return mapErr("transaction", err)
	}
	return nil
}

func (s *store) WatchDocument(ctx context.Context, path string) (<-chan repository.DocumentEvent, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	out := make(chan repository.DocumentEvent)
	go func() {
		defer close(out)
		it := ref.Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			ev := repository.DocumentEvent{}
			if err != nil {
				s.log.Warn("document stream failed", "path", path, "error", err)
				ev.Err = fmt.Errorf("watch %s: %w", path, err)
			} else {
				ev.Doc = toDocument(path, snap)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if err != nil {
				// the iterator is unusable after an error
				return
			}
		}
	}()
	return out, nil
}

func (s *store) WatchCollection(ctx context.Context, path string) (<-chan repository.CollectionEvent, error) {
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	coll := s.client.Collection(path)
	if coll == nil {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	out := make(chan repository.CollectionEvent)
	go func() {
		defer close(out)
		it := coll.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			ev := repository.CollectionEvent{}
			if err == nil {
				var snaps []*firestore.DocumentSnapshot
				snaps, err = qs.Documents.GetAll()
				for _, snap := range snaps {
					ev.Docs = append(ev.Docs, toDocument(repository.Join(path, snap.Ref.ID), snap))
				}
			}
			if err != nil {
				s.log.Warn("collection stream failed", "path", path, "error", err)
				ev = repository.CollectionEvent{Err: fmt.Errorf("watch %s: %w", path, err)}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *store) Close() error {
	return s.client.Close()
}

type transaction struct {
	store *store
	tx    *firestore.Transaction
}

func (t *transaction) Get(path string) (repository.Document, error) {
	ref, err := t.store.doc(path)
	if err != nil {
		return repository.Document{}, err
	}
	snap, err := t.tx.Get(ref)
	if err != nil && status.Code(err) != codes.NotFound {
		return repository.Document{}, fmt.Errorf("tx get %s: %w", path, err)
	}
	return toDocument(path, snap), nil
}

func (t *transaction) Set(path string, data map[string]interface{}) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, toFirestore(data))
}

func (t *transaction) Update(path string, data map[string]interface{}) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Update(ref, updates(data))
}

func toDocument(path string, snap *firestore.DocumentSnapshot) repository.Document {
	_, id, _ := repository.SplitPath(path)
	doc := repository.Document{ID: id, Path: path}
	if snap == nil || !snap.Exists() {
		return doc
	}
	doc.Exists = true
	doc.Data = snap.Data()
	doc.UpdateTime = snap.UpdateTime
	return doc
}

func updates(data map[string]interface{}) []firestore.Update {
	out := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: convert(v)})
	}
	return out
}

func toFirestore(data map[string]interface{}) map[string]interface{} {
	return convert(data).(map[string]interface{})
}

// convert swaps the store-neutral timestamp sentinel for Firestore's.
func convert(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = convert(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = convert(val)
		}
		return out
	default:
		if repository.IsServerTimestamp(v) {
			return firestore.ServerTimestamp
		}
		return v
	}
}

func mapErr(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidPath) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
