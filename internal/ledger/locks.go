package ledger

import "sync"

// userLocks hands out one mutex per user id. Entries are reference counted
// and dropped once no execution holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock blocks until the caller owns userId and returns the matching unlock.
func (l *userLocks) lock(userId string) func() {
	l.mu.Lock()
	entry, ok := l.locks[userId]
	if !ok {
		entry = &userLock{}
		l.locks[userId] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userId)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
