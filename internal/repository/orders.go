package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tribotech-apps/smart-order-webhook/internal/docstore"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

const ordersCollection = "orders"

type OrdersRepositoryInterface interface {
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id string) (domain.Order, error)
	UpdateFlow(ctx context.Context, o domain.Order) error
	// FindRecentActive returns the newest still-active order for one
	// conversation created at or after since.
	FindRecentActive(ctx context.Context, phone, storeID string, activeBelow domain.Stage, since time.Time) (domain.Order, bool, error)
	// FindActive lists every active order, newest last. Used to re-arm
	// stage alerts on boot.
	FindActive(ctx context.Context, activeBelow domain.Stage) ([]domain.Order, error)
}

type OrdersRepository struct {
	docs docstore.Store
}

func NewOrdersRepository(docs docstore.Store) OrdersRepositoryInterface {
	return &OrdersRepository{docs: docs}
}

func (r *OrdersRepository) Create(ctx context.Context, o domain.Order) error {
	fields, err := docstore.Fields(o)
	if err != nil {
		return &domain.PersistenceError{Op: "orders.create", Err: err}
	}
	if _, err := r.docs.Create(ctx, ordersCollection, fields); err != nil {
		return &domain.PersistenceError{Op: "orders.create", Err: err}
	}
	return nil
}

func (r *OrdersRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	doc, err := r.docs.FindOne(ctx, ordersCollection, []docstore.Filter{docstore.Eq("id", id)})
	if errors.Is(err, docstore.ErrNoDocument) {
		return domain.Order{}, &domain.NotFoundError{Kind: "order", Key: id}
	}
	if err != nil {
		return domain.Order{}, &domain.PersistenceError{Op: "orders.get", Err: err}
	}

	var o domain.Order
	if err := doc.Decode(&o); err != nil {
		return domain.Order{}, &domain.PersistenceError{Op: "orders.get", Err: err}
	}
	return o, nil
}

// UpdateFlow persists only the mutable lifecycle state; the business payload
// set at creation is never touched again.
func (r *OrdersRepository) UpdateFlow(ctx context.Context, o domain.Order) error {
	fields, err := docstore.Fields(struct {
		CurrentFlow domain.CurrentFlow     `json:"currentFlow"`
		Workflow    []domain.WorkflowEntry `json:"workflow"`
	}{o.CurrentFlow, o.Workflow})
	if err != nil {
		return &domain.PersistenceError{Op: "orders.update_flow", Err: err}
	}

	err = r.docs.Update(ctx, ordersCollection, o.ID, fields)
	if errors.Is(err, docstore.ErrNoDocument) {
		return &domain.NotFoundError{Kind: "order", Key: o.ID}
	}
	if err != nil {
		return &domain.PersistenceError{Op: "orders.update_flow", Err: err}
	}
	return nil
}

func (r *OrdersRepository) FindRecentActive(ctx context.Context, phone, storeID string, activeBelow domain.Stage, since time.Time) (domain.Order, bool, error) {
	doc, err := r.docs.FindOne(ctx, ordersCollection,
		[]docstore.Filter{
			docstore.Eq("phoneNumber", phone),
			docstore.Eq("storeId", storeID),
			docstore.Lt("currentFlow.stage", int(activeBelow)),
		},
		docstore.OrderBy("createdAt", true),
		docstore.NotBefore(since),
	)
	if errors.Is(err, docstore.ErrNoDocument) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, &domain.PersistenceError{Op: "orders.find_recent", Err: err}
	}

	var o domain.Order
	if err := doc.Decode(&o); err != nil {
		return domain.Order{}, false, &domain.PersistenceError{Op: "orders.find_recent", Err: err}
	}
	return o, true, nil
}

func (r *OrdersRepository) FindActive(ctx context.Context, activeBelow domain.Stage) ([]domain.Order, error) {
	docs, err := r.docs.FindMany(ctx, ordersCollection,
		[]docstore.Filter{docstore.Lt("currentFlow.stage", int(activeBelow))},
		docstore.OrderBy("createdAt", false),
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "orders.find_active", Err: err}
	}

	orders := make([]domain.Order, 0, len(docs))
	for i := range docs {
		var o domain.Order
		if err := docs[i].Decode(&o); err != nil {
			return nil, &domain.PersistenceError{Op: "orders.find_active", Err: err}
		}
		orders = append(orders, o)
	}
	return orders, nil
}
