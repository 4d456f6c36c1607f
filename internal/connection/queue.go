package connection

import "sync"

// eventQueue is the unbounded FIFO feeding the manager's event loop.
// push never blocks, so callers outside the loop (and callbacks running on
// it) can always enqueue work. The ring doubles when it is full.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []func()
	head   int // next pop
	count  int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// queueStats contains queue statistics.
type queueStats struct {
	Depth    int
	Capacity int
	Pushed   int64
	Popped   int64
	Resizes  int
}

func newEventQueue(initialCapacity int) *eventQueue {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &eventQueue{
		buf: make([]func(), initialCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends fn. Returns false once the queue is closed.
func (q *eventQueue) push(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.count)%len(q.buf)] = fn
	q.count++
	q.pushed++
	q.cond.Signal()
	return true
}

// pop blocks until an event is available. After close it keeps returning
// queued events and reports false once the queue is empty.
func (q *eventQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return nil, false
	}

	fn := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return fn, true
}

// close stops accepting events and wakes a blocked pop.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *eventQueue) stats() queueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queueStats{
		Depth:    q.count,
		Capacity: len(q.buf),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Resizes:  q.resizes,
	}
}

// grow doubles the ring, unwrapping it to start at index 0. Must be called
// with the lock held.
func (q *eventQueue) grow() {
	next := make([]func(), len(q.buf)*2)
	n := copy(next, q.buf[q.head:])
	copy(next[n:], q.buf[:q.head])

	q.buf = next
	q.head = 0
	q.resizes++
}
