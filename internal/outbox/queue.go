package outbox

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of outbound messages. Enqueue never blocks and
// never fails; the tradeoff is unbounded memory growth if the consumer
// stalls for a long time, which is acceptable at this bot's traffic levels.
type Queue struct {
	mu    sync.Mutex
	items []Message
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends msg to the queue. It never blocks and never fails.
func (q *Queue) Enqueue(msg Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest message, suspending the caller while
// the queue is empty. It returns ctx.Err() once the context is cancelled.
func (q *Queue) pop(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len reports the number of messages awaiting delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
