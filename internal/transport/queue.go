// ABOUTME: Priority outbound queue for the transport client.
// ABOUTME: Orders by (priority desc, enqueue time asc); tracks per-item retry counts.

package transport

import (
	"container/heap"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/protocol"
	"github.com/meshwork-ai/meshwork/internal/task"
)

// queueItem wraps a message awaiting delivery.
type queueItem struct {
	msg        *protocol.Message
	priority   task.Priority
	enqueuedAt time.Time
	seq        uint64 // insertion order, breaks equal-time ties
	retryCount int
}

// itemHeap implements heap.Interface over queue items.
type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	if !h[i].enqueuedAt.Equal(h[j].enqueuedAt) {
		return h[i].enqueuedAt.Before(h[j].enqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// sendQueue is the mutex-guarded priority queue with a wake-up signal
// for the delivery loop.
type sendQueue struct {
	mu     sync.Mutex
	items  itemHeap
	seq    uint64
	notify chan struct{}
}

func newSendQueue() *sendQueue {
	return &sendQueue{notify: make(chan struct{}, 1)}
}

// push enqueues a message, stamping the enqueue time on first entry.
func (q *sendQueue) push(msg *protocol.Message) {
	q.pushItem(&queueItem{
		msg:        msg,
		priority:   msg.Priority,
		enqueuedAt: time.Now(),
	})
}

// pushItem re-enqueues an existing item, preserving its original
// enqueue time and retry count.
func (q *sendQueue) pushItem(item *queueItem) {
	q.mu.Lock()
	q.seq++
	item.seq = q.seq
	heap.Push(&q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop removes the highest-priority, oldest item. Returns nil when
// empty.
func (q *sendQueue) pop() *queueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*queueItem)
}

// size returns the number of queued items.
func (q *sendQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
