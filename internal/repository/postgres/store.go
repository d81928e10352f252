package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	notifyChannel = "documents_changed"
	maxAttempts   = 5
)

type store struct {
	db  *sqlx.DB
	hub *hub
	log *logger.Logger
}

type row struct {
	ID        string    `db:"id"`
	Path      string    `db:"path"`
	Data      []byte    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// New keeps documents as JSONB rows keyed by path. dsn opens the dedicated
// LISTEN connection that feeds the watchers.
func New(ctx context.Context, db *sqlx.DB, dsn string, log *logger.Logger) (repository.DocumentStore, error) {
	log = log.With("store", "postgres")
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	h, err := newHub(dsn, log)
	if err != nil {
		return nil, err
	}
	return &store{db: db, hub: h, log: log}, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("documents schema: %w", err)
	}
	return nil
}

func (s *store) NewID() string {
	return uuid.NewString()
}

func (s *store) Get(ctx context.Context, path string) (repository.Document, error) {
	if _, _, ok := repository.SplitPath(path); !ok {
		return repository.Document{}, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return getDocument(ctx, s.db, path)
}

func (s *store) Set(ctx context.Context, path string, data map[string]interface{}) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx repository.Tx) error {
		return tx.Set(path, data)
	})
}

func (s *store) Update(ctx context.Context, path string, data map[string]interface{}) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx repository.Tx) error {
		return tx.Update(path, data)
	})
}

func (s *store) List(ctx context.Context, path string) ([]repository.Document, error) {
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return listDocuments(ctx, s.db, path)
}

// RunTransaction runs fn in a serializable transaction and retries it on
// serialization failures.
func (s *store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
		s.log.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", maxAttempts, err)
}

func (s *store) runOnce(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &transaction{ctx: ctx, tx: sqlTx}
	if err := fn(ctx, tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *store) WatchDocument(ctx context.Context, path string) (<-chan repository.DocumentEvent, error) {
	if _, _, ok := repository.SplitPath(path); !ok {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return watch(ctx, s.hub, path, func() repository.DocumentEvent {
		doc, err := getDocument(ctx, s.db, path)
		return repository.DocumentEvent{Doc: doc, Err: err}
	}), nil
}

func (s *store) WatchCollection(ctx context.Context, path string) (<-chan repository.CollectionEvent, error) {
	if !repository.ValidCollection(path) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return watch(ctx, s.hub, path, func() repository.CollectionEvent {
		docs, err := listDocuments(ctx, s.db, path)
		return repository.CollectionEvent{Docs: docs, Err: err}
	}), nil
}

func (s *store) Close() error {
	return s.hub.close()
}

func getDocument(ctx context.Context, q sqlx.QueryerContext, path string) (repository.Document, error) {
	_, id, _ := repository.SplitPath(path)
	var r row
	err := sqlx.GetContext(ctx, q, &r, `SELECT id, path, data, updated_at FROM documents WHERE path = $1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.Document{ID: id, Path: path}, nil
	}
	if err != nil {
		return repository.Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return r.document()
}

func listDocuments(ctx context.Context, q sqlx.QueryerContext, parent string) ([]repository.Document, error) {
	var rows []row
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, path, data, updated_at FROM documents WHERE parent = $1 ORDER BY seq`, parent)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", parent, err)
	}
	docs := make([]repository.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r row) document() (repository.Document, error) {
	data := map[string]interface{}{}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return repository.Document{}, fmt.Errorf("decode %s: %w", r.Path, err)
	}
	return repository.Document{ID: r.ID, Path: r.Path, Exists: true, Data: data, UpdateTime: r.UpdatedAt}, nil
}

type transaction struct {
	ctx    context.Context
	tx     *sqlx.Tx
	wrote  bool
	commit time.Time
}

func (t *transaction) Get(path string) (repository.Document, error) {
	if t.wrote {
		return repository.Document{}, fmt.Errorf("read after write in transaction: %s", path)
	}
	if _, _, ok := repository.SplitPath(path); !ok {
		return repository.Document{}, fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	return getDocument(t.ctx, t.tx, path)
}

func (t *transaction) Set(path string, data map[string]interface{}) error {
	parent, id, ok := repository.SplitPath(path)
	if !ok {
		return fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	payload, err := t.encode(data)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO documents (path, parent, id, data, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (path)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, path, parent, id, payload)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return t.notify(path)
}

func (t *transaction) Update(path string, data map[string]interface{}) error {
	if _, _, ok := repository.SplitPath(path); !ok {
		return fmt.Errorf("%w: %q", repository.ErrInvalidPath, path)
	}
	payload, err := t.encode(data)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE documents SET data = data || $2::jsonb, updated_at = now() WHERE path = $1`, path, payload)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", path, repository.ErrNotFound)
	}
	return t.notify(path)
}

func (t *transaction) notify(path string) error {
	if _, err := t.tx.ExecContext(t.ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	return nil
}

// encode resolves timestamp sentinels to the transaction start time.
func (t *transaction) encode(data map[string]interface{}) (string, error) {
	if !t.wrote {
		t.wrote = true
		if err := t.tx.GetContext(t.ctx, &t.commit, `SELECT now()`); err != nil {
			return "", fmt.Errorf("read transaction time: %w", err)
		}
		t.commit = t.commit.UTC()
	}
	b, err := json.Marshal(resolve(data, t.commit))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func resolve(v interface{}, now time.Time) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = resolve(val, now)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = resolve(val, now)
		}
		return out
	default:
		if repository.IsServerTimestamp(v) {
			return now.Format(time.RFC3339Nano)
		}
		return v
	}
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
