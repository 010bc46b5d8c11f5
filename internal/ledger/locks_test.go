package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := newUserLocks()
	unlock := locks.lock("user1")

	acquired := make(chan struct{})
	go func() {
		release := locks.lock("user1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestUserLocks_IndependentUsers(t *testing.T) {
	locks := newUserLocks()
	unlock := locks.lock("user1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.lock("user2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
}

func TestUserLocks_EntriesReleased(t *testing.T) {
	locks := newUserLocks()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock("user1")()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, locks.size())
}
