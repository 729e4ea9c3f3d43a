// Package dispatch abstracts "run this callback on the designated consumer
// context". Worker goroutines never invoke completion callbacks directly;
// they hand them to a Dispatcher, which decides where they execute.
package dispatch

import "sync"

// Dispatcher delivers callbacks to a single logical destination.
type Dispatcher interface {
	// Post schedules fn for execution. Post must not block on fn.
	Post(fn func())
}

// Func adapts a plain function to the Dispatcher interface. Func(run) with
// run = func(fn func()) { fn() } yields synchronous in-place delivery, which
// is what most tests want.
type Func func(fn func())

// Post implements Dispatcher.
func (f Func) Post(fn func()) { f(fn) }

// Sync returns a Dispatcher that runs callbacks synchronously on the
// posting goroutine.
func Sync() Dispatcher {
	return Func(func(fn func()) { fn() })
}

// Loop delivers callbacks on a single dedicated goroutine in FIFO order,
// the closest stand-in for a UI main loop. Post never blocks; the backlog
// is unbounded.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewLoop starts the consumer goroutine.
func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.consume()
	return l
}

// Post implements Dispatcher. Posting after Close is a no-op.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Close drains already-posted callbacks and stops the consumer. It blocks
// until the consumer goroutine has exited.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	l.cond.Signal()
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *Loop) consume() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
