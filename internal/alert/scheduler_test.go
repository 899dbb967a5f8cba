package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
	"github.com/tribotech-apps/smart-order-webhook/internal/logger"
)

type fakeTimer struct {
	ch       chan time.Time
	deadline time.Time
	stopped  bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }
func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{ch: make(chan time.Time, 1), deadline: c.now.Add(d)}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(now) {
			due = append(due, t)
			t.stopped = true
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		select {
		case t.ch <- now:
		default:
		}
	}
}

// waitArmed blocks until the scheduler loop has created n timers, i.e. it is
// parked waiting on a deadline computed from the current fake time.
func (c *fakeClock) waitArmed(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.timers) >= n
	}, time.Second, time.Millisecond)
}

type recorder struct {
	mu    sync.Mutex
	fired []Alert
}

func (r *recorder) overdue(_ context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, a)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func stillAlways(context.Context, string, domain.Stage) (bool, error) { return true, nil }

func startScheduler(t *testing.T, clock Clock, check StillInStageFunc, rec *recorder) *Scheduler {
	t.Helper()
	s := NewScheduler(clock, check, rec.overdue, logger.New("alert-test"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func TestAlertFiresOnceAtDeadline(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}
	s := startScheduler(t, clock, stillAlways, rec)

	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 30*time.Minute)
	clock.waitArmed(t, 1)

	clock.Advance(29 * time.Minute)
	require.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.waitArmed(t, 1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	// Spent, not rescheduled.
	clock.Advance(time.Hour)
	require.Never(t, func() bool { return rec.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 0, s.Pending())
}

func TestCancelBeforeDeadlineSuppresses(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}
	s := startScheduler(t, clock, stillAlways, rec)

	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 30*time.Minute)
	clock.waitArmed(t, 1)
	s.Cancel("ord-1", domain.StageQueued)
	require.Equal(t, 0, s.Pending())

	clock.Advance(time.Hour)
	require.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// Canceling again, or canceling something unknown, is a no-op.
	s.Cancel("ord-1", domain.StageQueued)
	s.Cancel("ghost", domain.StageConfirmed)
}

func TestDuplicateScheduleReplacesPrior(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}
	s := startScheduler(t, clock, stillAlways, rec)

	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 10*time.Minute)
	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 30*time.Minute)
	require.Equal(t, 1, s.Pending(), "one live alert per (order, stage)")

	// The replaced 10-minute deadline must not fire.
	clock.waitArmed(t, 1)
	clock.Advance(15 * time.Minute)
	require.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.waitArmed(t, 2)
	clock.Advance(15 * time.Minute)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	// One cancel clears the key no matter how often it was rescheduled.
	s.Schedule("ord-1", domain.StageQueued, "store-1", clock.Now(), 10*time.Minute)
	s.Schedule("ord-1", domain.StageQueued, "store-1", clock.Now(), 20*time.Minute)
	s.Cancel("ord-1", domain.StageQueued)
	require.Equal(t, 0, s.Pending())
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}
	s := startScheduler(t, clock, stillAlways, rec)

	// Entered 45 minutes ago with a 30-minute budget: already overdue.
	s.Schedule("ord-1", domain.StageQueued, "store-1", t0.Add(-45*time.Minute), 30*time.Minute)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
}

func TestFireTimeRecheckSuppressesStaleAlert(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}

	var mu sync.Mutex
	current := domain.StageQueued
	check := func(_ context.Context, _ string, stage domain.Stage) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return current == stage, nil
	}
	s := startScheduler(t, clock, check, rec)

	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 30*time.Minute)
	clock.waitArmed(t, 1)

	// The order advances but the cancel is lost to a race.
	mu.Lock()
	current = domain.StageConfirmed
	mu.Unlock()

	clock.Advance(31 * time.Minute)
	require.Never(t, func() bool { return rec.count() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 0, s.Pending())
}

func TestAdvancePastStageBeforeDeadline(t *testing.T) {
	t0 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(t0)
	rec := &recorder{}
	s := startScheduler(t, clock, stillAlways, rec)

	// Stage 1 alert at T0+30m; the order advances at T0+10m.
	s.Schedule("ord-1", domain.StageQueued, "store-1", t0, 30*time.Minute)
	clock.waitArmed(t, 1)
	clock.Advance(10 * time.Minute)

	s.Cancel("ord-1", domain.StageQueued)
	s.Schedule("ord-1", domain.StageConfirmed, "store-1", clock.Now(), 30*time.Minute)

	// Past the original deadline: stage 1 stays silent.
	clock.waitArmed(t, 2)
	clock.Advance(25 * time.Minute)
	require.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// The stage 2 alert is anchored at T0+10m and fires at T0+40m.
	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, domain.StageConfirmed, rec.fired[0].Stage)
	require.Equal(t, t0.Add(40*time.Minute), rec.fired[0].Deadline)
}
