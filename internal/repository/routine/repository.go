package routine

import (
	"context"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
)

type routineRepository struct {
	store repository.DocumentStore
}

func NewRoutineRepository(store repository.DocumentStore) repository.RoutineRepository {
	return &routineRepository{store: store}
}

func (r *routineRepository) NewID() string {
	return r.store.NewID()
}

// Create writes the same payload under both trees with one id.
func (r *routineRepository) Create(tx repository.Tx, personalID, studentID, routineID string, f models.RoutineForm) error {
	data := f.Data()
	data["dataCriacao"] = repository.ServerTimestamp

	nested := repository.Join(repository.NestedRoutinesPath(personalID, studentID), routineID)
	if err := tx.Set(nested, data); err != nil {
		return err
	}
	return tx.Set(repository.Join(repository.RootRoutinesPath(studentID), routineID), data)
}

func (r *routineRepository) ListNested(ctx context.Context, personalID, studentID string) ([]repository.Document, error) {
	return r.store.List(ctx, repository.NestedRoutinesPath(personalID, studentID))
}

func (r *routineRepository) ListRoot(ctx context.Context, studentID string) ([]repository.Document, error) {
	return r.store.List(ctx, repository.RootRoutinesPath(studentID))
}

func (r *routineRepository) SetRoot(ctx context.Context, studentID, routineID string, data map[string]interface{}) error {
	return r.store.Set(ctx, repository.Join(repository.RootRoutinesPath(studentID), routineID), data)
}

func (r *routineRepository) WatchNested(ctx context.Context, personalID, studentID string) (<-chan repository.Snapshot[[]models.Routine], error) {
	return repository.WatchCollectionAs(ctx, r.store, repository.NestedRoutinesPath(personalID, studentID), toRoutine)
}

func (r *routineRepository) WatchRoot(ctx context.Context, studentID string) (<-chan repository.Snapshot[[]models.Routine], error) {
	return repository.WatchCollectionAs(ctx, r.store, repository.RootRoutinesPath(studentID), toRoutine)
}

func toRoutine(doc repository.Document) models.Routine {
	return models.RoutineFromData(doc.ID, doc.Data)
}
