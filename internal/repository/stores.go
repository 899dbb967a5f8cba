package repository

import (
	"context"
	"errors"

	"github.com/tribotech-apps/smart-order-webhook/internal/docstore"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

const storesCollection = "stores"

type StoresRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (domain.Store, error)
}

type StoresRepository struct {
	docs docstore.Store
}

func NewStoresRepository(docs docstore.Store) StoresRepositoryInterface {
	return &StoresRepository{docs: docs}
}

func (r *StoresRepository) GetByID(ctx context.Context, id string) (domain.Store, error) {
	doc, err := r.docs.FindOne(ctx, storesCollection, []docstore.Filter{docstore.Eq("id", id)})
	if errors.Is(err, docstore.ErrNoDocument) {
		return domain.Store{}, &domain.NotFoundError{Kind: "store", Key: id}
	}
	if err != nil {
		return domain.Store{}, &domain.PersistenceError{Op: "stores.get", Err: err}
	}

	var s domain.Store
	if err := doc.Decode(&s); err != nil {
		return domain.Store{}, &domain.PersistenceError{Op: "stores.get", Err: err}
	}
	return s, nil
}
