package workout

import (
	"context"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
)

type workoutRepository struct {
	store repository.DocumentStore
}

func NewWorkoutRepository(store repository.DocumentStore) repository.WorkoutRepository {
	return &workoutRepository{store: store}
}

// AppendExercise reads both copies of the muscle group document first and
// then writes both. An existing document gets one more array element, so
// repeating a call yields a duplicate entry.
func (r *workoutRepository) AppendExercise(tx repository.Tx, personalID, studentID, routineID string, f models.WorkoutForm) error {
	paths := []string{
		repository.Join(repository.NestedWorkoutsPath(personalID, studentID, routineID), f.Musculo),
		repository.Join(repository.RootWorkoutsPath(studentID, routineID), f.Musculo),
	}
	docs := make([]repository.Document, len(paths))
	for i, path := range paths {
		doc, err := tx.Get(path)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	for i, path := range paths {
		if err := tx.Set(path, appended(docs[i], f)); err != nil {
			return err
		}
	}
	return nil
}

func appended(doc repository.Document, f models.WorkoutForm) map[string]interface{} {
	element := f.Exercicio.Data()
	if !doc.Exists {
		return map[string]interface{}{
			"musculo":     f.Musculo,
			"exercicios":  []interface{}{element},
			"dataCriacao": repository.ServerTimestamp,
		}
	}
	data := make(map[string]interface{}, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	existing, _ := doc.Data["exercicios"].([]interface{})
	exercicios := make([]interface{}, 0, len(existing)+1)
	exercicios = append(exercicios, existing...)
	data["exercicios"] = append(exercicios, element)
	data["dataCriacao"] = repository.ServerTimestamp
	return data
}

func (r *workoutRepository) ListNested(ctx context.Context, personalID, studentID, routineID string) ([]repository.Document, error) {
	return r.store.List(ctx, repository.NestedWorkoutsPath(personalID, studentID, routineID))
}

func (r *workoutRepository) ListRoot(ctx context.Context, studentID, routineID string) ([]repository.Document, error) {
	return r.store.List(ctx, repository.RootWorkoutsPath(studentID, routineID))
}

func (r *workoutRepository) SetRoot(ctx context.Context, studentID, routineID, muscle string, data map[string]interface{}) error {
	return r.store.Set(ctx, repository.Join(repository.RootWorkoutsPath(studentID, routineID), muscle), data)
}

func (r *workoutRepository) WatchNested(ctx context.Context, personalID, studentID, routineID string) (<-chan repository.Snapshot[[]models.Workout], error) {
	return repository.WatchCollectionAs(ctx, r.store, repository.NestedWorkoutsPath(personalID, studentID, routineID), toWorkout)
}

func (r *workoutRepository) WatchRoot(ctx context.Context, studentID, routineID string) (<-chan repository.Snapshot[[]models.Workout], error) {
	return repository.WatchCollectionAs(ctx, r.store, repository.RootWorkoutsPath(studentID, routineID), toWorkout)
}

func toWorkout(doc repository.Document) models.Workout {
	return models.WorkoutFromData(doc.ID, doc.Data)
}
