// ABOUTME: Keyed mutex table serializing turns per thread
// ABOUTME: Concurrent turns for one thread queue; other threads run freely

package chat

import "sync"

type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// lock acquires the mutex for threadID, creating it on first use. The
// returned function releases the mutex and drops the table entry once no
// turn holds or awaits it.
func (t *threadLocks) lock(threadID string) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, threadID)
		}
		t.mu.Unlock()
	}
}
