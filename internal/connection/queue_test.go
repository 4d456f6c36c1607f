package connection

import (
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, q *eventQueue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		fn, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d returned false", i)
		}
		fn()
	}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue(4)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if !q.push(func() { got = append(got, i) }) {
			t.Fatalf("push(%d) returned false", i)
		}
	}
	drain(t, q, 5)

	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if q.len() != 0 {
		t.Errorf("len() = %d, want 0", q.len())
	}
}

func TestEventQueue_GrowsWhenFull(t *testing.T) {
	q := newEventQueue(2)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.push(func() { got = append(got, i) })
	}

	s := q.stats()
	if s.Depth != 100 {
		t.Errorf("Depth = %d, want 100", s.Depth)
	}
	if s.Capacity < 100 {
		t.Errorf("Capacity = %d, want >= 100", s.Capacity)
	}
	if s.Resizes < 6 {
		t.Errorf("Resizes = %d, want at least 6", s.Resizes)
	}

	drain(t, q, 100)
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestEventQueue_WrapAroundThenGrow(t *testing.T) {
	q := newEventQueue(4)

	var got []int
	push := func(i int) { q.push(func() { got = append(got, i) }) }

	push(1)
	push(2)
	push(3)
	drain(t, q, 2)

	// Wraps past the end, then forces a grow with head != 0.
	push(4)
	push(5)
	push(6)
	push(7)

	drain(t, q, 5)
	want := []int{1, 2, 3, 4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestEventQueue_BlockingPop(t *testing.T) {
	q := newEventQueue(1)

	done := make(chan struct{})
	go func() {
		fn, ok := q.pop()
		if ok {
			fn()
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.push(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked pop")
	}
}

func TestEventQueue_CloseDrainsThenStops(t *testing.T) {
	q := newEventQueue(4)

	ran := 0
	q.push(func() { ran++ })
	q.push(func() { ran++ })
	q.close()

	if q.push(func() { ran++ }) {
		t.Error("push should return false after close")
	}

	drain(t, q, 2)
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
	if _, ok := q.pop(); ok {
		t.Error("pop should return false when closed and empty")
	}
}

func TestEventQueue_CloseUnblocksPop(t *testing.T) {
	q := newEventQueue(1)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case ok := <-done:
		if ok {
			t.Error("pop should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not unblock pop")
	}
}

func TestEventQueue_ConcurrentPush(t *testing.T) {
	q := newEventQueue(8)
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(func() {})
			}
		}()
	}
	wg.Wait()

	s := q.stats()
	if s.Pushed != producers*perProducer {
		t.Errorf("Pushed = %d, want %d", s.Pushed, producers*perProducer)
	}
	drain(t, q, producers*perProducer)
	if s := q.stats(); s.Popped != producers*perProducer || s.Depth != 0 {
		t.Errorf("after drain stats = %+v", s)
	}
}

func TestNewEventQueue_MinCapacity(t *testing.T) {
	for _, c := range []int{0, -5} {
		if got := newEventQueue(c).stats().Capacity; got != 1 {
			t.Errorf("newEventQueue(%d) capacity = %d, want 1", c, got)
		}
	}
}
