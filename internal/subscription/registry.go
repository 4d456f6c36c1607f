// Package subscription holds the set of topics that should be subscribed,
// independent of the connection state.
//
// A Registry is owned by the connection's event loop and is not safe for
// concurrent use. Entries keep their insertion order; replay after a
// reconnect walks them in that order.
package subscription

import (
	"errors"
	"fmt"

	"github.com/rickgao/coin-stream/internal/codec"
)

// Handler consumes one message body. Returning an error wrapping
// codec.ErrDecode marks the body as malformed.
type Handler func(body []byte) error

// On builds a Handler that decodes the body and passes the value to fn.
func On[T any](decode codec.DecodeFunc[T], fn func(T)) Handler {
	return func(body []byte) error {
		v, err := decode(body)
		if err != nil {
			if !errors.Is(err, codec.ErrDecode) {
				err = fmt.Errorf("%w: %v", codec.ErrDecode, err)
			}
			return err
		}
		fn(v)
		return nil
	}
}

// Entry is one registered topic. Handle is the live subscription id and is
// empty while the topic is not subscribed on the transport.
type Entry struct {
	Topic   string
	Group   string
	Handler Handler
	Handle  string
}

// Live reports whether the entry has a live handle.
func (e Entry) Live() bool {
	return e.Handle != ""
}

// Registry maps topics to handlers, at most one entry per topic.
type Registry struct {
	order []*Entry
	index map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]*Entry),
	}
}

// Put installs the handler for topic. An existing entry for the same topic
// is removed and returned so the caller can release its live handle; the
// new entry goes to the end of the order.
func (r *Registry) Put(topic, group string, h Handler) (Entry, bool) {
	old, replaced := r.Delete(topic)

	e := &Entry{Topic: topic, Group: group, Handler: h}
	r.order = append(r.order, e)
	r.index[topic] = e
	return old, replaced
}

// Delete removes topic and returns the removed entry. Deleting a topic
// that is not registered is a no-op.
func (r *Registry) Delete(topic string) (Entry, bool) {
	e, ok := r.index[topic]
	if !ok {
		return Entry{}, false
	}
	delete(r.index, topic)
	for i, cur := range r.order {
		if cur == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *e, true
}

// Get returns the entry for topic.
func (r *Registry) Get(topic string) (Entry, bool) {
	e, ok := r.index[topic]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Lookup returns the handler registered for topic.
func (r *Registry) Lookup(topic string) (Handler, bool) {
	e, ok := r.index[topic]
	if !ok {
		return nil, false
	}
	return e.Handler, true
}

// SetHandle records the live handle of topic.
func (r *Registry) SetHandle(topic, handle string) bool {
	e, ok := r.index[topic]
	if !ok {
		return false
	}
	e.Handle = handle
	return true
}

// SetHandler swaps the handler of topic in place, keeping its position
// and live handle.
func (r *Registry) SetHandler(topic string, h Handler) bool {
	e, ok := r.index[topic]
	if !ok {
		return false
	}
	e.Handler = h
	return true
}

// ClearHandles forgets every live handle. Used when the transport is gone.
func (r *Registry) ClearHandles() {
	for _, e := range r.order {
		e.Handle = ""
	}
}

// Entries returns a copy of all entries in registry order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.order))
	for i, e := range r.order {
		out[i] = *e
	}
	return out
}

// Topics returns the topics of group in registry order.
func (r *Registry) Topics(group string) []string {
	var out []string
	for _, e := range r.order {
		if e.Group == group {
			out = append(out, e.Topic)
		}
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.order)
}

// LiveCount returns the number of entries holding a live handle.
func (r *Registry) LiveCount() int {
	n := 0
	for _, e := range r.order {
		if e.Live() {
			n++
		}
	}
	return n
}
