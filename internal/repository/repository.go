package repository

import (
	"context"
	"errors"
	"io"
	"time"

	"personal-connect/internal/models"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

type serverTimestamp struct{}

// ServerTimestamp is replaced by the backend's commit time on write.
var ServerTimestamp interface{} = serverTimestamp{}

func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Document is a snapshot of one document. Exists is false for paths that
// hold nothing; Data is nil then.
type Document struct {
	ID         string
	Path       string
	Exists     bool
	Data       map[string]interface{}
	UpdateTime time.Time
}

type DocumentEvent struct {
	Doc Document
	Err error
}

type CollectionEvent struct {
	Docs []Document
	Err  error
}

// Tx is a read-then-write transaction. All Gets must happen before the
// first write.
type Tx interface {
	Get(path string) (Document, error)
	Set(path string, data map[string]interface{}) error
	Update(path string, data map[string]interface{}) error
}

// DocumentStore is the remote document database.
type DocumentStore interface {
	NewID() string
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, data map[string]interface{}) error
	Update(ctx context.Context, path string, data map[string]interface{}) error
	// List reads the direct children of a collection once.
	List(ctx context.Context, collection string) ([]Document, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Watch streams are closed once ctx is done. Events of one stream are
	// delivered in order, one at a time.
	WatchDocument(ctx context.Context, path string) (<-chan DocumentEvent, error)
	WatchCollection(ctx context.Context, path string) (<-chan CollectionEvent, error)

	Close() error
}

// BlobStore keeps uploaded files such as profile pictures.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
}

// Snapshot is one delivery of a typed subscription.
type Snapshot[T any] struct {
	Value T
	Err   error
}

type UserRepository interface {
	SetType(tx Tx, uid string, t models.UserType) error
	GetType(ctx context.Context, uid string) (models.UserType, bool, error)
	WatchType(ctx context.Context, uid string) (<-chan Snapshot[models.UserType], error)
}

type PersonalRepository interface {
	Create(tx Tx, p models.Personal) error
	Get(ctx context.Context, uid string) (*models.Personal, error)
	Update(ctx context.Context, uid string, u models.PersonalUpdate) error
	// Watch yields nil when the profile document does not exist.
	Watch(ctx context.Context, uid string) (<-chan Snapshot[*models.Personal], error)
}

type StudentRepository interface {
	// Create writes the nested and the flattened copy in the same transaction.
	Create(tx Tx, personalID string, s models.Student) error
	// UpdateBoth patches both copies together.
	UpdateBoth(tx Tx, personalID, studentID string, data map[string]interface{}) error
	GetNested(ctx context.Context, personalID, studentID string) (Document, error)
	GetRoot(ctx context.Context, studentID string) (Document, error)
	SetRoot(ctx context.Context, personalID string, s models.Student) error
	WatchByPersonal(ctx context.Context, personalID string) (<-chan Snapshot[[]models.Student], error)
	// WatchRoot yields nil when Alunos/{studentID} does not exist.
	WatchRoot(ctx context.Context, studentID string) (<-chan Snapshot[*models.Student], error)
}

type RoutineRepository interface {
	NewID() string
	Create(tx Tx, personalID, studentID, routineID string, f models.RoutineForm) error
	ListNested(ctx context.Context, personalID, studentID string) ([]Document, error)
	ListRoot(ctx context.Context, studentID string) ([]Document, error)
	SetRoot(ctx context.Context, studentID, routineID string, data map[string]interface{}) error
	WatchNested(ctx context.Context, personalID, studentID string) (<-chan Snapshot[[]models.Routine], error)
	WatchRoot(ctx context.Context, studentID string) (<-chan Snapshot[[]models.Routine], error)
}

type WorkoutRepository interface {
	// AppendExercise performs the read-check-write upsert of one muscle
	// group document at both locations inside tx.
	AppendExercise(tx Tx, personalID, studentID, routineID string, f models.WorkoutForm) error
	ListNested(ctx context.Context, personalID, studentID, routineID string) ([]Document, error)
	ListRoot(ctx context.Context, studentID, routineID string) ([]Document, error)
	SetRoot(ctx context.Context, studentID, routineID, muscle string, data map[string]interface{}) error
	WatchNested(ctx context.Context, personalID, studentID, routineID string) (<-chan Snapshot[[]models.Workout], error)
	WatchRoot(ctx context.Context, studentID, routineID string) (<-chan Snapshot[[]models.Workout], error)
}
