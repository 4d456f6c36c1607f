package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/coin-stream/internal/codec"
)

// Dispatcher routes inbound frames to the handler registered for their
// topic. A failing frame never affects the next one: decode errors are
// logged and dropped, handler panics are recovered.
type Dispatcher struct {
	lookup Lookup
	logger *slog.Logger

	received      atomic.Int64
	dispatched    atomic.Int64
	unrouted      atomic.Int64
	decodeErrors  atomic.Int64
	handlerErrors atomic.Int64
	panics        atomic.Int64
}

// NewDispatcher creates a Dispatcher reading handlers from lookup.
func NewDispatcher(lookup Lookup, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		lookup: lookup,
		logger: logger,
	}
}

// Dispatch invokes the handler of f.Topic synchronously.
func (d *Dispatcher) Dispatch(f Frame) {
	d.received.Add(1)

	h, ok := d.lookup.Lookup(f.Topic)
	if !ok {
		// Usually a frame that raced an unsubscribe.
		d.unrouted.Add(1)
		d.logger.Debug("dropping frame for unknown topic", "topic", f.Topic)
		return
	}

	err := d.invoke(h, f)
	switch {
	case err == nil:
		d.dispatched.Add(1)
	case errors.Is(err, errPanic):
		d.panics.Add(1)
		d.logger.Error("handler panicked", "topic", f.Topic, "error", err)
	case errors.Is(err, codec.ErrDecode):
		d.decodeErrors.Add(1)
		d.logger.Warn("failed to decode message",
			"topic", f.Topic,
			"bytes", len(f.Body),
			"error", err,
		)
	default:
		d.handlerErrors.Add(1)
		d.logger.Warn("handler failed", "topic", f.Topic, "error", err)
	}
}

var errPanic = errors.New("handler panic")

func (d *Dispatcher) invoke(h func([]byte) error, f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return h(f.Body)
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:      d.received.Load(),
		Dispatched:    d.dispatched.Load(),
		Unrouted:      d.unrouted.Load(),
		DecodeErrors:  d.decodeErrors.Load(),
		HandlerErrors: d.handlerErrors.Load(),
		Panics:        d.panics.Load(),
	}
}
