package personal

import (
	"context"

	"personal-connect/internal/models"
	"personal-connect/internal/repository"
)

type personalRepository struct {
	store repository.DocumentStore
}

func NewPersonalRepository(store repository.DocumentStore) repository.PersonalRepository {
	return &personalRepository{store: store}
}

func (r *personalRepository) Create(tx repository.Tx, p models.Personal) error {
	return tx.Set(repository.PersonalPath(p.ID), p.Data())
}

func (r *personalRepository) Get(ctx context.Context, uid string) (*models.Personal, error) {
	doc, err := r.store.Get(ctx, repository.PersonalPath(uid))
	if err != nil || !doc.Exists {
		return nil, err
	}
	p := models.PersonalFromData(uid, doc.Data)
	return &p, nil
}

func (r *personalRepository) Update(ctx context.Context, uid string, u models.PersonalUpdate) error {
	return r.store.Update(ctx, repository.PersonalPath(uid), u.Data())
}

func (r *personalRepository) Watch(ctx context.Context, uid string) (<-chan repository.Snapshot[*models.Personal], error) {
	return repository.WatchDocumentAs(ctx, r.store, repository.PersonalPath(uid),
		func(doc repository.Document) *models.Personal {
			if !doc.Exists {
				return nil
			}
			p := models.PersonalFromData(uid, doc.Data)
			return &p
		})
}
