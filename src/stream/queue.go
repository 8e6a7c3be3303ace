package stream

import (
	"sync"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

type notificationKind int

const (
	notifyState notificationKind = iota
	notifyMessage
)

type notification struct {
	kind  notificationKind
	state models.MConnectionState
	data  []byte
}

// -----------------------------------------------------------------------------

// notificationQueue is an unbounded FIFO drained by the dispatcher.
// Pushing never blocks, so transport goroutines never wait on listeners.
type notificationQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []notification
	closed bool
}

func newNotificationQueue() *notificationQueue {
	q := &notificationQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// -----------------------------------------------------------------------------

func (q *notificationQueue) push(n notification) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, n)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

// -----------------------------------------------------------------------------

// pop blocks until an item is available; false once closed and drained
func (q *notificationQueue) pop() (notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return notification{}, false
	}
	n := q.items[0]
	q.items[0] = notification{}
	q.items = q.items[1:]
	return n, true
}

// -----------------------------------------------------------------------------

func (q *notificationQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
