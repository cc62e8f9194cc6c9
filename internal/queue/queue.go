// Package queue provides serial execution contexts.
//
// A Serial runs submitted functions one at a time, in submission order, on a
// single goroutine. Dispatch never blocks the caller. The scanner uses one
// Serial for capture reconfiguration and expects the host to provide another
// (or any Executor with the same guarantees) as its UI context.
package queue

import (
	"fmt"
	"log/slog"
	"sync"
)

// Executor runs functions asynchronously.
// Implementations used as a UI context must run functions sequentially in
// submission order.
type Executor interface {
	Dispatch(fn func())
}

// Serial is an unbounded FIFO executor backed by one goroutine.
type Serial struct {
	name   string
	log    *slog.Logger
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewSerial creates and starts a serial queue.
func NewSerial(name string, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Serial{
		name: name,
		log:  logger.With("queue", name),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Name returns the queue name.
func (q *Serial) Name() string {
	return q.name
}

// Dispatch enqueues fn and returns immediately.
// Functions dispatched after Close are dropped.
func (q *Serial) Dispatch(fn func()) {
	if fn == nil {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Debug("dispatch after close dropped")
		return
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Sync enqueues fn and waits for it to finish.
// It must not be called from a function running on the same queue.
// It returns false if the queue is closed.
func (q *Serial) Sync(fn func()) bool {
	finished := make(chan struct{})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, func() {
		defer close(finished)
		fn()
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	<-finished
	return true
}

// Flush waits until every function dispatched before the call has run.
func (q *Serial) Flush() {
	q.Sync(func() {})
}

// Close runs the functions already queued, then stops the goroutine.
// It is safe to call more than once.
func (q *Serial) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Serial) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			continue
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.exec(fn)
	}
}

// exec runs fn and keeps the queue alive if it panics.
func (q *Serial) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Len returns the number of functions waiting to run.
func (q *Serial) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
