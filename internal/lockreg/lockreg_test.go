package lockreg

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireOrSkipRunsWhenFree(t *testing.T) {
	r := New()
	ran := false
	ok, err := r.AcquireOrSkip("k", func() error { ran = true; return nil })
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ran)
	require.False(t, r.IsLocked("k"))
}

func TestAcquireOrSkipDropsConcurrentDuplicate(t *testing.T) {
	r := New()
	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.AcquireOrSkip("k", func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	ran := false
	ok, err := r.AcquireOrSkip("k", func() error { ran = true; return nil })
	require.NoError(t, err)
	require.False(t, ok, "second caller must observe skipped")
	require.False(t, ran)

	close(release)
	wg.Wait()
	require.False(t, r.IsLocked("k"))
}

func TestAcquireOrSkipExecutesExactlyOnceUnderRace(t *testing.T) {
	r := New()
	var mu sync.Mutex
	runs := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.AcquireOrSkip("k", func() error {
				mu.Lock()
				runs++
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 1, runs, "op must execute exactly once")
}

func TestReleaseOnFailure(t *testing.T) {
	r := New()
	boom := &testErr{}
	ok, err := r.AcquireOrSkip("k", func() error { return boom })
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
	require.False(t, r.IsLocked("k"), "lock must be released on the failure path")
}

func TestConversationKeyDeterministic(t *testing.T) {
	a := ConversationKey("+55 (11) 99999-0000", "store-1")
	b := ConversationKey("5511999990000", "store-1")
	require.Equal(t, a, b)
	require.Equal(t, "5511999990000_store-1", a)

	c := ConversationKey("5511999990000", "store-2")
	require.NotEqual(t, a, c)
}

type testErr struct{}

func (*testErr) Error() string { return "boom" }
