package ledger

import (
	"sync"
	"time"

	"metered-ledger-go/internal/models"
)

// idClock issues strictly increasing millisecond timestamps so that ids
// generated by one process never collide. Separate processes can still
// produce the same id for the same user.
type idClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *idClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

func newOperationId(now time.Time, userId string) string {
	return "op_" + models.FormatTimestamp(now) + "_" + userId
}

func newRecordId(now time.Time, userId string) string {
	return "rec_" + models.FormatTimestamp(now) + "_" + userId
}
