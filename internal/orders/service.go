// Package orders orchestrates the order lifecycle: creation under the
// conversation lock, stage advancement, and the alert/notification hooks
// around both.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tribotech-apps/smart-order-webhook/internal/alert"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
	"github.com/tribotech-apps/smart-order-webhook/internal/lockreg"
	"github.com/tribotech-apps/smart-order-webhook/internal/logger"
	"github.com/tribotech-apps/smart-order-webhook/internal/notify"
	"github.com/tribotech-apps/smart-order-webhook/internal/repository"
	"github.com/tribotech-apps/smart-order-webhook/internal/storehours"
	"github.com/tribotech-apps/smart-order-webhook/internal/workflow"
)

const defaultRowTime = 30 // minutes, when a store has no stage budget configured

// AlertScheduler is the slice of the alert scheduler the service needs.
type AlertScheduler interface {
	Schedule(orderID string, stage domain.Stage, storeID string, enteredAt time.Time, budget time.Duration)
	Cancel(orderID string, stage domain.Stage)
}

type OrderServiceInterface interface {
	// CreateOrder runs the creation flow under the conversation lock. A
	// concurrent duplicate trigger gets (nil, nil): skipped, not failed.
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.CreateOrderResponse, error)
	// AdvanceStage moves an order forward under its order lock. A racing
	// duplicate gets (nil, nil).
	AdvanceStage(ctx context.Context, orderID string, to domain.Stage) (*domain.Order, error)
	// RearmAlerts reconstructs the pending alerts from active orders.
	RearmAlerts(ctx context.Context) (int, error)
}

var _ OrderServiceInterface = (*OrderService)(nil)

type OrderService struct {
	locks     *lockreg.Registry
	orders    repository.OrdersRepositoryInterface
	users     repository.UsersRepositoryInterface
	stores    repository.StoresRepositoryInterface
	alerts    AlertScheduler
	sender    notify.Sender
	lifecycle *workflow.Lifecycle
	dupWindow time.Duration
	now       func() time.Time
	lg        *logger.Logger
}

func NewOrderService(
	locks *lockreg.Registry,
	orders repository.OrdersRepositoryInterface,
	users repository.UsersRepositoryInterface,
	stores repository.StoresRepositoryInterface,
	alerts AlertScheduler,
	sender notify.Sender,
	lifecycle *workflow.Lifecycle,
	dupWindow time.Duration,
	lg *logger.Logger,
) *OrderService {
	if dupWindow <= 0 {
		dupWindow = 5 * time.Minute
	}
	return &OrderService{
		locks:     locks,
		orders:    orders,
		users:     users,
		stores:    stores,
		alerts:    alerts,
		sender:    sender,
		lifecycle: lifecycle,
		dupWindow: dupWindow,
		now:       func() time.Time { return time.Now().UTC() },
		lg:        lg,
	}
}

// WithClock overrides the time source. Tests only.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

func (s *OrderService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	key := lockreg.ConversationKey(req.PhoneNumber, req.StoreID)

	var resp *domain.CreateOrderResponse
	ran, err := s.locks.AcquireOrSkip(key, func() error {
		var opErr error
		resp, opErr = s.create(ctx, req)
		return opErr
	})
	if !ran {
		s.lg.Info("duplicate_trigger_skipped", map[string]any{"conversation": key})
		return nil, nil
	}
	return resp, err
}

func (s *OrderService) create(ctx context.Context, req domain.CreateOrderRequest) (*domain.CreateOrderResponse, error) {
	now := s.now()

	store, err := s.stores.GetByID(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if !storehours.IsOpen(store.Hours, now) {
		return nil, &domain.ValidationError{Field: "store_id", Reason: "store is closed"}
	}

	if _, err := s.users.Upsert(ctx, req.PhoneNumber, req.CustomerName, req.Address, now); err != nil {
		return nil, err
	}

	// A second delivery for the same conversation can land after the first
	// one released the lock; the recent-order guard catches those.
	if prev, found, err := s.orders.FindRecentActive(ctx, req.PhoneNumber, req.StoreID,
		s.lifecycle.TerminalFrom(), now.Add(-s.dupWindow)); err != nil {
		return nil, err
	} else if found {
		s.lg.Info("recent_order_reused", map[string]any{"order_id": prev.ID})
		return &domain.CreateOrderResponse{
			OrderID:     prev.ID,
			Stage:       prev.CurrentFlow.Stage.String(),
			TotalAmount: domain.Total(prev.Items),
		}, nil
	}

	flow, trail := workflow.InitialFlow(now)
	order := domain.Order{
		ID:           newOrderID(store.Slug),
		StoreID:      store.ID,
		PhoneNumber:  req.PhoneNumber,
		CustomerName: req.CustomerName,
		Address:      req.Address,
		PaymentID:    req.PaymentID,
		Items:        domain.ConvertItems(req.Items),
		CurrentFlow:  flow,
		Workflow:     trail,
		CreatedAt:    now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	s.lg.Info("order_created", map[string]any{
		"order_id": order.ID, "store_id": store.ID, "stage": flow.Stage.String(),
	})

	// From here on the order exists; alerting and announcements are
	// best-effort augmentations and never roll it back.
	s.alerts.Schedule(order.ID, flow.Stage, store.ID, now, stageBudget(store))
	s.announceStage(ctx, order, domain.Stage(0), flow.Stage)

	return &domain.CreateOrderResponse{
		OrderID:     order.ID,
		Stage:       flow.Stage.String(),
		TotalAmount: domain.Total(order.Items),
	}, nil
}

func (s *OrderService) AdvanceStage(ctx context.Context, orderID string, to domain.Stage) (*domain.Order, error) {
	var advanced *domain.Order
	ran, err := s.locks.AcquireOrSkip("order_"+orderID, func() error {
		var opErr error
		advanced, opErr = s.advance(ctx, orderID, to)
		return opErr
	})
	if !ran {
		s.lg.Info("duplicate_trigger_skipped", map[string]any{"order_id": orderID})
		return nil, nil
	}
	return advanced, err
}

func (s *OrderService) advance(ctx context.Context, orderID string, to domain.Stage) (*domain.Order, error) {
	now := s.now()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.CurrentFlow.Stage

	next, err := s.lifecycle.Advance(order, to, now)
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateFlow(ctx, next); err != nil {
		return nil, err
	}
	s.lg.Info("stage_advanced", map[string]any{
		"order_id": orderID, "from": from.String(), "to": to.String(),
	})

	// The old stage's deadline no longer applies; the new stage gets its
	// own while the order is still active.
	s.alerts.Cancel(orderID, from)
	if s.lifecycle.IsActive(next) {
		if store, serr := s.stores.GetByID(ctx, next.StoreID); serr != nil {
			s.lg.Error("alert_schedule_failed", serr, map[string]any{"order_id": orderID})
		} else {
			s.alerts.Schedule(orderID, to, next.StoreID, now, stageBudget(store))
		}
	}

	s.announceStage(ctx, next, from, to)
	return &next, nil
}

// RearmAlerts rebuilds the pending-alert registry after a restart: one alert
// per active order, anchored at the stage it is currently in.
func (s *OrderService) RearmAlerts(ctx context.Context) (int, error) {
	active, err := s.orders.FindActive(ctx, s.lifecycle.TerminalFrom())
	if err != nil {
		return 0, err
	}

	budgets := make(map[string]time.Duration)
	rearmed := 0
	for _, o := range active {
		budget, ok := budgets[o.StoreID]
		if !ok {
			store, serr := s.stores.GetByID(ctx, o.StoreID)
			if serr != nil {
				s.lg.Error("rearm_store_lookup_failed", serr, map[string]any{"order_id": o.ID})
				continue
			}
			budget = stageBudget(store)
			budgets[o.StoreID] = budget
		}
		s.alerts.Schedule(o.ID, o.CurrentFlow.Stage, o.StoreID, o.CurrentFlow.EnteredAt, budget)
		rearmed++
	}
	s.lg.Info("alerts_rearmed", map[string]any{"count": rearmed, "active": len(active)})
	return rearmed, nil
}

// announceStage tells the customer their order moved. Fire-and-forget.
func (s *OrderService) announceStage(ctx context.Context, o domain.Order, from, to domain.Stage) {
	n := domain.Notification{
		Channel: domain.ChannelWhatsApp,
		Target:  o.PhoneNumber,
		Title:   "Order update",
		Body:    fmt.Sprintf("Your order %s is now %s.", o.ID, to.String()),
		OrderID: o.ID,
		StoreID: o.StoreID,
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.lg.Error("stage_notification_failed", err, map[string]any{
			"order_id": o.ID, "from": from.String(), "to": to.String(),
		})
	}
}

// StageCheck builds the scheduler's fire-time re-check: the alert is only
// real if the order still sits in the alerted stage.
func StageCheck(orders repository.OrdersRepositoryInterface, lifecycle *workflow.Lifecycle) alert.StillInStageFunc {
	return func(ctx context.Context, orderID string, stage domain.Stage) (bool, error) {
		o, err := orders.GetByID(ctx, orderID)
		if domain.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return o.CurrentFlow.Stage == stage && lifecycle.IsActive(o), nil
	}
}

// OverdueNotifier builds the scheduler's overdue handler: push to store
// staff. Failures are logged, never propagated.
func OverdueNotifier(stores repository.StoresRepositoryInterface, sender notify.Sender, lg *logger.Logger) alert.OverdueFunc {
	return func(ctx context.Context, a alert.Alert) {
		store, err := stores.GetByID(ctx, a.StoreID)
		if err != nil {
			lg.Error("overdue_store_lookup_failed", err, map[string]any{"order_id": a.OrderID})
			return
		}
		n := domain.Notification{
			Channel: domain.ChannelPush,
			Target:  store.StaffPhone,
			Title:   "Order stuck",
			Body: fmt.Sprintf("Order %s has been %s since %s.",
				a.OrderID, a.Stage.String(), a.EnteredAt.Format(time.Kitchen)),
			OrderID: a.OrderID,
			StoreID: a.StoreID,
		}
		if err := sender.Send(ctx, n); err != nil {
			lg.Error("overdue_notification_failed", err, map[string]any{"order_id": a.OrderID})
		}
	}
}

func validateCreate(req domain.CreateOrderRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerName) == "":
		return &domain.ValidationError{Field: "customer_name", Reason: "required"}
	case strings.TrimSpace(req.PhoneNumber) == "":
		return &domain.ValidationError{Field: "phone_number", Reason: "required"}
	case strings.TrimSpace(req.Address) == "":
		return &domain.ValidationError{Field: "address", Reason: "required"}
	case strings.TrimSpace(req.PaymentID) == "":
		return &domain.ValidationError{Field: "payment_id", Reason: "required"}
	case strings.TrimSpace(req.StoreID) == "":
		return &domain.ValidationError{Field: "store_id", Reason: "required"}
	case len(req.Items) == 0:
		return &domain.ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	return nil
}

func stageBudget(store domain.Store) time.Duration {
	minutes := store.RowTime
	if minutes <= 0 {
		minutes = defaultRowTime
	}
	return time.Duration(minutes) * time.Minute
}

// newOrderID derives the external id: store slug plus a short random
// component, legible enough to read over the phone.
func newOrderID(slug string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", slug, raw[:8])
}
