// ABOUTME: Tests for the per-thread lock table
// ABOUTME: Verifies mutual exclusion per key and entry cleanup

package chat

import (
	"sync"
	"testing"
)

func TestThreadLocks_SerializesSameKey(t *testing.T) {
	locks := newThreadLocks()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("thread-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestThreadLocks_IndependentKeys(t *testing.T) {
	locks := newThreadLocks()

	unlockA := locks.lock("a")
	// Must not block even while "a" is held.
	unlockB := locks.lock("b")
	unlockB()
	unlockA()
}

func TestThreadLocks_CleanupAfterRelease(t *testing.T) {
	locks := newThreadLocks()

	unlock := locks.lock("ephemeral")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Errorf("lock table has %d entries after release, want 0", len(locks.locks))
	}
}
