package subscription

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/rickgao/coin-stream/internal/codec"
)

func noop([]byte) error { return nil }

func topicsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Topic
	}
	return out
}

func TestRegistry_PutAndLookup(t *testing.T) {
	r := NewRegistry()

	var got string
	r.Put("/sub/a", "g", func(b []byte) error {
		got = string(b)
		return nil
	})

	h, ok := r.Lookup("/sub/a")
	if !ok {
		t.Fatal("expected topic to be registered")
	}
	if err := h([]byte("x")); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "x" {
		t.Errorf("handler saw %q, want x", got)
	}

	if _, ok := r.Lookup("/sub/missing"); ok {
		t.Error("unexpected handler for unknown topic")
	}
}

func TestRegistry_ReplaceMovesToEndAndReturnsOld(t *testing.T) {
	r := NewRegistry()
	r.Put("/sub/a", "g", noop)
	r.Put("/sub/b", "g", noop)
	r.SetHandle("/sub/a", "h-1")

	old, replaced := r.Put("/sub/a", "g", noop)
	if !replaced {
		t.Fatal("expected replaced = true")
	}
	if old.Handle != "h-1" {
		t.Errorf("old.Handle = %q, want h-1", old.Handle)
	}

	want := []string{"/sub/b", "/sub/a"}
	if got := topicsOf(r.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if e, _ := r.Get("/sub/a"); e.Live() {
		t.Error("replacement entry should start without a live handle")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_OnlyNewHandlerFiresAfterReplace(t *testing.T) {
	r := NewRegistry()

	var oldCalls, newCalls int
	r.Put("/sub/a", "g", func([]byte) error { oldCalls++; return nil })
	r.Put("/sub/a", "g", func([]byte) error { newCalls++; return nil })

	h, _ := r.Lookup("/sub/a")
	for i := 0; i < 3; i++ {
		h(nil)
	}
	if oldCalls != 0 || newCalls != 3 {
		t.Errorf("old = %d, new = %d, want 0 and 3", oldCalls, newCalls)
	}
}

func TestRegistry_DeleteIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Put("/sub/a", "g", noop)
	r.Put("/sub/b", "g", noop)

	if _, ok := r.Delete("/sub/a"); !ok {
		t.Fatal("first Delete should remove the entry")
	}
	before := topicsOf(r.Entries())

	if _, ok := r.Delete("/sub/a"); ok {
		t.Error("second Delete should report nothing removed")
	}
	if after := topicsOf(r.Entries()); !reflect.DeepEqual(before, after) {
		t.Errorf("second Delete changed registry: %v -> %v", before, after)
	}
}

func TestRegistry_Handles(t *testing.T) {
	r := NewRegistry()
	r.Put("/sub/a", "g", noop)
	r.Put("/sub/b", "g", noop)

	if !r.SetHandle("/sub/a", "h-a") {
		t.Fatal("SetHandle on registered topic returned false")
	}
	if r.SetHandle("/sub/zzz", "h") {
		t.Error("SetHandle on unknown topic returned true")
	}
	if r.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d, want 1", r.LiveCount())
	}

	r.ClearHandles()
	if r.LiveCount() != 0 {
		t.Errorf("LiveCount() after ClearHandles = %d, want 0", r.LiveCount())
	}
	if r.Len() != 2 {
		t.Errorf("ClearHandles removed entries, Len() = %d", r.Len())
	}
}

func TestRegistry_SetHandlerKeepsHandle(t *testing.T) {
	r := NewRegistry()
	r.Put("/sub/a", "g", noop)
	r.SetHandle("/sub/a", "h-a")

	called := false
	r.SetHandler("/sub/a", func([]byte) error { called = true; return nil })

	e, _ := r.Get("/sub/a")
	if e.Handle != "h-a" {
		t.Errorf("Handle = %q, want h-a", e.Handle)
	}
	e.Handler(nil)
	if !called {
		t.Error("new handler not installed")
	}
}

func TestRegistry_TopicsByGroup(t *testing.T) {
	r := NewRegistry()
	r.Put("/sub/t1", "ticker", noop)
	r.Put("/sub/f1", "focus", noop)
	r.Put("/sub/t2", "ticker", noop)

	if got := r.Topics("ticker"); !reflect.DeepEqual(got, []string{"/sub/t1", "/sub/t2"}) {
		t.Errorf("Topics(ticker) = %v", got)
	}
	if got := r.Topics("none"); len(got) != 0 {
		t.Errorf("Topics(none) = %v, want empty", got)
	}
}

// For any sequence of Put/Delete calls the registry holds exactly the
// topics whose last call was a Put.
func TestRegistry_NetPositiveHistory(t *testing.T) {
	topics := []string{"/sub/a", "/sub/b", "/sub/c", "/sub/d", "/sub/e"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		r := NewRegistry()
		want := make(map[string]bool)

		for step := 0; step < 30; step++ {
			topic := topics[rng.Intn(len(topics))]
			if rng.Intn(2) == 0 {
				r.Put(topic, "g", noop)
				want[topic] = true
			} else {
				r.Delete(topic)
				delete(want, topic)
			}
		}

		got := make(map[string]bool)
		for _, e := range r.Entries() {
			if got[e.Topic] {
				t.Fatalf("round %d: duplicate entry %s", round, e.Topic)
			}
			got[e.Topic] = true
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d: registry = %v, want %v", round, got, want)
		}
	}
}

func TestOn_DecodesAndWrapsErrors(t *testing.T) {
	var seen int
	h := On(codec.JSON[int], func(v int) { seen = v })

	if err := h([]byte("42")); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if seen != 42 {
		t.Errorf("seen = %d, want 42", seen)
	}

	if err := h([]byte("nope")); !errors.Is(err, codec.ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}

	plain := On(func([]byte) (string, error) { return "", fmt.Errorf("boom") }, func(string) {
		t.Error("fn called after decode failure")
	})
	if err := plain(nil); !errors.Is(err, codec.ErrDecode) {
		t.Errorf("plain decode error = %v, want wrapped ErrDecode", err)
	}
}
