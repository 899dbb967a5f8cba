// Package lockreg provides keyed mutual exclusion for deduplicating
// concurrent triggers (retried webhook deliveries, racing timers) that touch
// the same conversation or order.
package lockreg

import (
	"strings"
	"sync"
)

// Registry is the in-memory, single-process lock table. Construct one per
// process and inject it; there is no package-level instance.
type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *Registry {
	return &Registry{held: make(map[string]struct{})}
}

// AcquireOrSkip runs op under the key's lock. If the key is already held the
// call returns (false, nil) immediately without running op: a concurrent
// duplicate trigger is dropped, not queued. The key is released on both
// success and failure of op.
func (r *Registry) AcquireOrSkip(key string, op func() error) (bool, error) {
	r.mu.Lock()
	if _, taken := r.held[key]; taken {
		r.mu.Unlock()
		return false, nil
	}
	r.held[key] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.held, key)
		r.mu.Unlock()
	}()

	return true, op()
}

// IsLocked is a point-in-time read for diagnostics. It must not be used to
// decide whether to call AcquireOrSkip; only AcquireOrSkip itself is
// race-safe.
func (r *Registry) IsLocked(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.held[key]
	return taken
}

// ConversationKey derives the lock key for one customer conversation. It is
// deterministic: two concurrent deliveries for the same conversation compute
// the identical key regardless of phone formatting.
func ConversationKey(phone, storeID string) string {
	return normalizePhone(phone) + "_" + storeID
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
