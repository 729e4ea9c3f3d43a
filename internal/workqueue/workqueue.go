// Package workqueue provides a single-worker task queue with an unbounded
// FIFO backlog. The worker goroutine is started on demand and released after
// an idle timeout, so an unused queue holds no goroutine.
package workqueue

import (
	"sync"
	"time"
)

// Queue runs submitted tasks one at a time, in submission order.
//
// Submit never blocks. The zero value is not usable; use New.
type Queue struct {
	idle time.Duration

	mu      sync.Mutex
	cond    *sync.Cond // signaled when backlog and in-flight both drain
	tasks   []func()
	pending int  // queued + currently executing tasks
	running bool // worker goroutine alive
	wake    chan struct{}
}

// New creates a queue whose worker exits after idle without work.
func New(idle time.Duration) *Queue {
	q := &Queue{
		idle: idle,
		wake: make(chan struct{}, 1),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Submit enqueues fn for execution. The backlog is unbounded; redundant
// submissions are cheap and never coalesced.
func (q *Queue) Submit(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.pending++
	spawn := !q.running
	if spawn {
		q.running = true
	}
	q.mu.Unlock()

	if spawn {
		go q.worker()
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks queued or executing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Wait blocks until every task submitted before the call has finished.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.pending > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *Queue) worker() {
	timer := time.NewTimer(q.idle)
	defer timer.Stop()

	for {
		if fn, ok := q.pop(); ok {
			q.run(fn)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(q.idle)
			continue
		}

		select {
		case <-q.wake:
		case <-timer.C:
			q.mu.Lock()
			if len(q.tasks) > 0 {
				// Work arrived between the empty pop and the timeout.
				q.mu.Unlock()
				timer.Reset(q.idle)
				continue
			}
			q.running = false
			q.mu.Unlock()
			return
		}
	}
}

func (q *Queue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	fn := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return fn, true
}

// run executes one task and marks it done. A panicking task is swallowed so
// the worker survives; tasks are expected to handle their own failures.
func (q *Queue) run(fn func()) {
	defer func() {
		_ = recover()
		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.cond.Broadcast()
		}
		q.mu.Unlock()
	}()
	fn()
}
