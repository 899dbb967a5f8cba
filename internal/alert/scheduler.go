// Package alert schedules the deferred "order is stuck in this stage"
// checks. One goroutine drains a min-heap of deadlines; there is no OS timer
// per alert.
package alert

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
	"github.com/tribotech-apps/smart-order-webhook/internal/logger"
)

// Key identifies one live alert. At most one live alert exists per key.
type Key struct {
	OrderID string
	Stage   domain.Stage
}

// Alert is the payload handed to the overdue handler when a deadline fires.
type Alert struct {
	OrderID   string
	Stage     domain.Stage
	StoreID   string
	EnteredAt time.Time
	Deadline  time.Time
}

// StillInStageFunc re-checks current order state at fire time. Cancellation
// is best-effort, so a fired timer may describe an order that already moved:
// the handler must confirm before notifying anyone.
type StillInStageFunc func(ctx context.Context, orderID string, stage domain.Stage) (bool, error)

// OverdueFunc dispatches the staff notification for a confirmed overdue
// order. Failures are the handler's problem; the alert is spent either way.
type OverdueFunc func(ctx context.Context, a Alert)

type entry struct {
	Alert
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].Deadline.Before(h[j].Deadline) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler owns the pending-alert registry. Construct one per process and
// inject it; tests use isolated instances with a fake clock.
type Scheduler struct {
	clock   Clock
	check   StillInStageFunc
	overdue OverdueFunc
	lg      *logger.Logger

	mu      sync.Mutex
	pending map[Key]*entry
	heap    entryHeap
	wake    chan struct{}
	closing *atomic.Bool
}

func NewScheduler(clock Clock, check StillInStageFunc, overdue OverdueFunc, lg *logger.Logger) *Scheduler {
	return &Scheduler{
		clock:   clock,
		check:   check,
		overdue: overdue,
		lg:      lg,
		pending: make(map[Key]*entry),
		wake:    make(chan struct{}, 1),
		closing: atomic.NewBool(false),
	}
}

// Schedule registers the deferred check for (orderID, stage). Deadline is
// enteredAt + budget; a deadline already in the past fires on the next loop
// turn. Duplicate keys are cancel-and-replace: a retried trigger carries the
// freshest enteredAt and must not leave two live alerts behind.
func (s *Scheduler) Schedule(orderID string, stage domain.Stage, storeID string, enteredAt time.Time, budget time.Duration) {
	if s.closing.Load() {
		return
	}
	key := Key{OrderID: orderID, Stage: stage}
	e := &entry{Alert: Alert{
		OrderID:   orderID,
		Stage:     stage,
		StoreID:   storeID,
		EnteredAt: enteredAt,
		Deadline:  enteredAt.Add(budget),
	}}

	s.mu.Lock()
	if prev, ok := s.pending[key]; ok {
		prev.canceled = true
	}
	s.pending[key] = e
	heap.Push(&s.heap, e)
	s.mu.Unlock()

	s.lg.Debug("alert_scheduled", map[string]any{
		"order_id": orderID, "stage": stage.String(), "deadline": e.Deadline,
	})
	s.kick()
}

// Cancel removes the pending alert for (orderID, stage). Canceling an absent
// or already-fired alert is a no-op.
func (s *Scheduler) Cancel(orderID string, stage domain.Stage) {
	key := Key{OrderID: orderID, Stage: stage}

	s.mu.Lock()
	e, ok := s.pending[key]
	if ok {
		e.canceled = true
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok {
		s.lg.Debug("alert_canceled", map[string]any{"order_id": orderID, "stage": stage.String()})
	}
}

// Pending reports the number of live alerts. Diagnostics only.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the deadline loop until ctx is canceled. Pending alerts do not
// survive the process: they are re-armed from order state on boot.
func (s *Scheduler) Run(ctx context.Context) {
	s.lg.Info("scheduler_started", nil)
	for {
		due, next := s.takeDue()
		for _, a := range due {
			s.fire(ctx, a)
		}

		var timer Timer
		var tick <-chan time.Time
		if next > 0 {
			timer = s.clock.NewTimer(next)
			tick = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.closing.Store(true)
			s.lg.Info("scheduler_stopped", map[string]any{"pending": s.Pending()})
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-tick:
		}
	}
}

// takeDue pops every entry whose deadline has passed, dropping canceled
// ones, and reports how long until the next live deadline (0 when the heap
// is empty).
func (s *Scheduler) takeDue() ([]Alert, time.Duration) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Alert
	for s.heap.Len() > 0 {
		head := s.heap[0]
		if head.canceled {
			heap.Pop(&s.heap)
			continue
		}
		if head.Deadline.After(now) {
			return due, head.Deadline.Sub(now)
		}
		heap.Pop(&s.heap)
		if s.pending[Key{OrderID: head.OrderID, Stage: head.Stage}] == head {
			delete(s.pending, Key{OrderID: head.OrderID, Stage: head.Stage})
		}
		due = append(due, head.Alert)
	}
	return due, 0
}

// fire runs one expired alert. The mandatory state re-check guards the
// window where cancellation lost the race against the timer.
func (s *Scheduler) fire(ctx context.Context, a Alert) {
	still, err := s.check(ctx, a.OrderID, a.Stage)
	if err != nil {
		s.lg.Error("alert_check_failed", err, map[string]any{
			"order_id": a.OrderID, "stage": a.Stage.String(),
		})
		return
	}
	if !still {
		s.lg.Debug("alert_suppressed", map[string]any{
			"order_id": a.OrderID, "stage": a.Stage.String(),
		})
		return
	}

	s.lg.Info("stage_overdue", map[string]any{
		"order_id": a.OrderID, "stage": a.Stage.String(), "deadline": a.Deadline,
	})
	s.overdue(ctx, a)
}
