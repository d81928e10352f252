package student

import (
	"context"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
)

type studentRepository struct {
	store repository.DocumentStore
}

func NewStudentRepository(store repository.DocumentStore) repository.StudentRepository {
	return &studentRepository{store: store}
}

func (r *studentRepository) Create(tx repository.Tx, personalID string, s models.Student) error {
	if err := tx.Set(repository.NestedStudentPath(personalID, s.ID), s.Data()); err != nil {
		return err
	}
	return tx.Set(repository.RootStudentPath(s.ID), s.RootData(personalID))
}

func (r *studentRepository) UpdateBoth(tx repository.Tx, personalID, studentID string, data map[string]interface{}) error {
	if err := tx.Update(repository.NestedStudentPath(personalID, studentID), data); err != nil {
		return err
	}
	return tx.Update(repository.RootStudentPath(studentID), data)
}

func (r *studentRepository) GetNested(ctx context.Context, personalID, studentID string) (repository.Document, error) {
	return r.store.Get(ctx, repository.NestedStudentPath(personalID, studentID))
}

func (r *studentRepository) GetRoot(ctx context.Context, studentID string) (repository.Document, error) {
	return r.store.Get(ctx, repository.RootStudentPath(studentID))
}

func (r *studentRepository) SetRoot(ctx context.Context, personalID string, s models.Student) error {
	return r.store.Set(ctx, repository.RootStudentPath(s.ID), s.RootData(personalID))
}

func (r *studentRepository) WatchByPersonal(ctx context.Context, personalID string) (<-chan repository.Snapshot[[]models.Student], error) {
	return repository.WatchCollectionAs(ctx, r.store, repository.NestedStudentsPath(personalID),
		func(doc repository.Document) models.Student {
			return models.StudentFromData(doc.ID, doc.Data)
		})
}

func (r *studentRepository) WatchRoot(ctx context.Context, studentID string) (<-chan repository.Snapshot[*models.Student], error) {
	return repository.WatchDocumentAs(ctx, r.store, repository.RootStudentPath(studentID),
		func(doc repository.Document) *models.Student {
			if !doc.Exists {
				return nil
			}
			s := models.StudentRootFromData(doc.Data)
			return &s
		})
}
