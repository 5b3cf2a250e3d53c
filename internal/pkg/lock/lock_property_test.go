package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestWithLockSerializesProperty checks that read-modify-write under WithLock
// gives the same result as running every operation sequentially.
func TestWithLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(0, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		key := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "key")
		kl := NewKeyLock()
		counter := initial

		var wg sync.WaitGroup
		var failures atomic.Int32
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				err := kl.WithLock(context.Background(), key, "adder", 5*time.Second, func() error {
					counter += amount
					return nil
				})
				if err != nil {
					failures.Add(1)
				}
			}(amount)
		}
		wg.Wait()

		if failures.Load() != 0 {
			t.Fatalf("%d WithLock calls failed", failures.Load())
		}
		if counter != expected {
			t.Fatalf("counter mismatch: expected %d, got %d", expected, counter)
		}
	})
}

// TestTryLockExclusiveProperty checks that TryLock never lets two holders in at once.
func TestTryLockExclusiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")
		kl := NewKeyLock()

		var holders, maxHolders, successes atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		start := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if kl.TryLock("rollover", "worker") {
					successes.Add(1)
					n := holders.Add(1)
					for {
						m := maxHolders.Load()
						if n <= m || maxHolders.CompareAndSwap(m, n) {
							break
						}
					}
					holders.Add(-1)
					kl.Unlock("rollover")
				}
			}()
		}
		close(start)
		wg.Wait()

		if successes.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed")
		}
		if maxHolders.Load() > 1 {
			t.Fatalf("TryLock admitted %d concurrent holders", maxHolders.Load())
		}
		if !kl.TryLock("rollover", "worker") {
			t.Fatal("lock should be free after all holders released it")
		}
		kl.Unlock("rollover")
	})
}

// TestHolderTracksOwnerProperty checks that Holder names the current owner and
// is empty once the key is released.
func TestHolderTracksOwnerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "key")
		holders := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 20).Draw(t, "holders")

		kl := NewKeyLock()
		for _, h := range holders {
			if !kl.TryLock(key, h) {
				t.Fatalf("key %q should be free", key)
			}
			if got := kl.Holder(key); got != h {
				t.Fatalf("holder: expected %q, got %q", h, got)
			}
			if kl.TryLock(key, "intruder") {
				t.Fatal("TryLock succeeded on a held key")
			}
			kl.Unlock(key)
			if got := kl.Holder(key); got != "" {
				t.Fatalf("released key still held by %q", got)
			}
		}
	})
}

func TestLock_Timeout(t *testing.T) {
	kl := NewKeyLock()
	require.True(t, kl.TryLock("rollover", "rollover"))

	called := false
	err := kl.WithLock(context.Background(), "rollover", "ash", 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
	assert.Equal(t, "rollover", kl.Holder("rollover"))

	kl.Unlock("rollover")

	err = kl.WithLock(context.Background(), "rollover", "ash", time.Second, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, kl.Holder("rollover"))
}

func TestLock_WaitsForRelease(t *testing.T) {
	kl := NewKeyLock()
	require.True(t, kl.TryLock("k", "first"))

	done := make(chan error, 1)
	go func() { done <- kl.Lock(context.Background(), "k", "second", 5*time.Second) }()

	time.AfterFunc(30*time.Millisecond, func() { kl.Unlock("k") })

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Lock never returned")
	}
	assert.Equal(t, "second", kl.Holder("k"))
}

func TestLock_ContextCancelled(t *testing.T) {
	kl := NewKeyLock()
	require.True(t, kl.TryLock("k", "first"))
	defer kl.Unlock("k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := kl.Lock(ctx, "k", "second", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "first", kl.Holder("k"))
}

func TestUnlock_FreeKeyIsNoop(t *testing.T) {
	kl := NewKeyLock()
	assert.NotPanics(t, func() { kl.Unlock("never-seen") })
	assert.Empty(t, kl.Holder("never-seen"))
	assert.True(t, kl.TryLock("never-seen", "x"))
}
