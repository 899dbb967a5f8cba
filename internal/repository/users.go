package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tribotech-apps/smart-order-webhook/internal/docstore"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

const usersCollection = "users"

type UsersRepositoryInterface interface {
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	// Upsert resolves the user for a conversation, creating the record on
	// first contact and refreshing name/address on later ones.
	Upsert(ctx context.Context, phone, name, address string, now time.Time) (domain.User, error)
}

type UsersRepository struct {
	docs docstore.Store
}

func NewUsersRepository(docs docstore.Store) UsersRepositoryInterface {
	return &UsersRepository{docs: docs}
}

func (r *UsersRepository) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	doc, err := r.docs.FindOne(ctx, usersCollection, []docstore.Filter{docstore.Eq("phoneNumber", phone)})
	if errors.Is(err, docstore.ErrNoDocument) {
		return domain.User{}, &domain.NotFoundError{Kind: "user", Key: phone}
	}
	if err != nil {
		return domain.User{}, &domain.PersistenceError{Op: "users.get", Err: err}
	}

	var u domain.User
	if err := doc.Decode(&u); err != nil {
		return domain.User{}, &domain.PersistenceError{Op: "users.get", Err: err}
	}
	return u, nil
}

func (r *UsersRepository) Upsert(ctx context.Context, phone, name, address string, now time.Time) (domain.User, error) {
	existing, err := r.GetByPhone(ctx, phone)
	if err == nil {
		existing.Name = name
		existing.Address = address
		fields, ferr := docstore.Fields(struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		}{name, address})
		if ferr != nil {
			return domain.User{}, &domain.PersistenceError{Op: "users.upsert", Err: ferr}
		}
		if uerr := r.docs.Update(ctx, usersCollection, existing.ID, fields); uerr != nil {
			return domain.User{}, &domain.PersistenceError{Op: "users.upsert", Err: uerr}
		}
		return existing, nil
	}
	if !domain.IsNotFound(err) {
		return domain.User{}, err
	}

	u := domain.User{PhoneNumber: phone, Name: name, Address: address, CreatedAt: now}
	fields, ferr := docstore.Fields(u)
	if ferr != nil {
		return domain.User{}, &domain.PersistenceError{Op: "users.upsert", Err: ferr}
	}
	id, cerr := r.docs.Create(ctx, usersCollection, fields)
	if cerr != nil {
		return domain.User{}, &domain.PersistenceError{Op: "users.upsert", Err: cerr}
	}
	u.ID = id
	return u, nil
}
