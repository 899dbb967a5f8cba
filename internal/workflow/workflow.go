// Package workflow is the order stage machine: the forward-only transition
// rule and the append-only audit trail. It computes state; persistence
// belongs to the caller.
package workflow

import (
	"time"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

// Lifecycle carries the stage ordering policy. The terminal threshold is
// configuration so new business stages do not require touching the
// transition rule.
type Lifecycle struct {
	terminalFrom domain.Stage
}

// NewLifecycle builds a lifecycle where every stage below terminalFrom is
// active.
func NewLifecycle(terminalFrom domain.Stage) *Lifecycle {
	return &Lifecycle{terminalFrom: terminalFrom}
}

// DefaultLifecycle: queued, confirmed and in_production are active;
// delivered, completed and canceled are terminal.
func DefaultLifecycle() *Lifecycle {
	return NewLifecycle(domain.StageDelivered)
}

// TerminalFrom is the first terminal stage; everything below it is active.
func (l *Lifecycle) TerminalFrom() domain.Stage { return l.terminalFrom }

// IsActive reports whether the order still needs staff attention.
func (l *Lifecycle) IsActive(o domain.Order) bool {
	return o.CurrentFlow.Stage < l.terminalFrom
}

// InitialFlow builds the creation-time state: currentFlow at the first
// stage, one workflow entry with zero elapsed minutes.
func InitialFlow(now time.Time) (domain.CurrentFlow, []domain.WorkflowEntry) {
	flow := domain.CurrentFlow{Stage: domain.StageQueued, EnteredAt: now}
	trail := []domain.WorkflowEntry{{Stage: domain.StageQueued, MinutesSincePrevious: 0}}
	return flow, trail
}

// Advance computes the order state after moving to a later stage. Only
// strictly-forward moves within the known enumeration are legal: skipping
// back, re-entering a stage already passed, or a stage value outside the
// enumeration (a corrupt payload) is rejected and the input is left
// untouched. The returned order carries a fresh workflow slice so the
// input's audit trail is never aliased.
func (l *Lifecycle) Advance(o domain.Order, to domain.Stage, now time.Time) (domain.Order, error) {
	if to <= o.CurrentFlow.Stage || to > domain.StageCanceled {
		return domain.Order{}, &domain.InvalidTransitionError{From: o.CurrentFlow.Stage, To: to}
	}

	minutes := int(now.Sub(o.CurrentFlow.EnteredAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	trail := make([]domain.WorkflowEntry, len(o.Workflow), len(o.Workflow)+1)
	copy(trail, o.Workflow)
	trail = append(trail, domain.WorkflowEntry{Stage: to, MinutesSincePrevious: minutes})

	o.Workflow = trail
	o.CurrentFlow = domain.CurrentFlow{Stage: to, EnteredAt: now}
	return o, nil
}
