package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

func newOrder(t0 time.Time) domain.Order {
	flow, trail := InitialFlow(t0)
	return domain.Order{
		ID:          "demo-store-a1b2c3d4",
		StoreID:     "demo-store",
		CurrentFlow: flow,
		Workflow:    trail,
		CreatedAt:   t0,
	}
}

func TestInitialFlow(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	o := newOrder(t0)

	require.Equal(t, domain.StageQueued, o.CurrentFlow.Stage)
	require.Len(t, o.Workflow, 1)
	require.Equal(t, 0, o.Workflow[0].MinutesSincePrevious)
}

func TestAdvanceAppendsAuditEntry(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	o2, err := lc.Advance(o, domain.StageConfirmed, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.StageConfirmed, o2.CurrentFlow.Stage)
	require.Equal(t, t0.Add(10*time.Minute), o2.CurrentFlow.EnteredAt)
	require.Len(t, o2.Workflow, 2)
	require.Equal(t, 10, o2.Workflow[1].MinutesSincePrevious)

	// Input untouched.
	require.Equal(t, domain.StageQueued, o.CurrentFlow.Stage)
	require.Len(t, o.Workflow, 1)
}

func TestWorkflowGrowsByOnePerAdvance(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	stages := []domain.Stage{domain.StageConfirmed, domain.StageInProduction, domain.StageDelivered}
	now := t0
	for i, s := range stages {
		now = now.Add(7 * time.Minute)
		var err error
		o, err = lc.Advance(o, s, now)
		require.NoError(t, err)
		require.Len(t, o.Workflow, i+2)
	}

	for i := 1; i < len(o.Workflow); i++ {
		require.Greater(t, o.Workflow[i].Stage, o.Workflow[i-1].Stage,
			"audit trail stages must be strictly increasing")
	}
	require.Equal(t, o.CurrentFlow.Stage, o.Workflow[len(o.Workflow)-1].Stage)
}

func TestAdvanceRejectsBackwardAndRepeat(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	o, err := lc.Advance(o, domain.StageInProduction, t0.Add(time.Minute))
	require.NoError(t, err)

	for _, to := range []domain.Stage{domain.StageQueued, domain.StageConfirmed, domain.StageInProduction} {
		_, err := lc.Advance(o, to, t0.Add(2*time.Minute))
		var bad *domain.InvalidTransitionError
		require.ErrorAs(t, err, &bad)
		require.Equal(t, domain.StageInProduction, bad.From)
		require.Equal(t, to, bad.To)
	}
}

func TestAdvanceRejectsUnknownStage(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	_, err := lc.Advance(o, domain.Stage(99), t0.Add(time.Minute))
	var bad *domain.InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	require.Equal(t, domain.Stage(99), bad.To)
}

func TestCancelIsReachableFromAnyActiveStage(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	o2, err := lc.Advance(o, domain.StageCanceled, t0.Add(3*time.Minute))
	require.NoError(t, err)
	require.False(t, lc.IsActive(o2))
}

func TestIsActiveThreshold(t *testing.T) {
	lc := DefaultLifecycle()
	active := []domain.Stage{domain.StageQueued, domain.StageConfirmed, domain.StageInProduction}
	terminal := []domain.Stage{domain.StageDelivered, domain.StageCompleted, domain.StageCanceled}

	for _, s := range active {
		require.True(t, lc.IsActive(domain.Order{CurrentFlow: domain.CurrentFlow{Stage: s}}), s.String())
	}
	for _, s := range terminal {
		require.False(t, lc.IsActive(domain.Order{CurrentFlow: domain.CurrentFlow{Stage: s}}), s.String())
	}
}

func TestElapsedMinutesTruncate(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	lc := DefaultLifecycle()
	o := newOrder(t0)

	o2, err := lc.Advance(o, domain.StageConfirmed, t0.Add(90*time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, o2.Workflow[1].MinutesSincePrevious)
}
