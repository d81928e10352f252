package user

import (
	"context"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
)

type userRepository struct {
	store repository.DocumentStore
}

func NewUserRepository(store repository.DocumentStore) repository.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) SetType(tx repository.Tx, uid string, t models.UserType) error {
	return tx.Set(repository.UserTypePath(uid), t.Data())
}

func (r *userRepository) GetType(ctx context.Context, uid string) (models.UserType, bool, error) {
	doc, err := r.store.Get(ctx, repository.UserTypePath(uid))
	if err != nil || !doc.Exists {
		return "", false, err
	}
	return models.UserTypeFromData(doc.Data), true, nil
}

func (r *userRepository) WatchType(ctx context.Context, uid string) (<-chan repository.Snapshot[models.UserType], error) {
	return repository.WatchDocumentAs(ctx, r.store, repository.UserTypePath(uid),
		func(doc repository.Document) models.UserType {
			return models.UserTypeFromData(doc.Data)
		})
}
