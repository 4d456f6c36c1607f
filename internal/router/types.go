package router

import (
	"time"

	"github.com/rickgao/coin-stream/internal/stomp"
	"github.com/rickgao/coin-stream/internal/subscription"
)

// Frame is one inbound message: the topic it was published on and its raw
// body. It only lives for the duration of a dispatch.
type Frame struct {
	Topic      string
	Body       []byte
	ReceivedAt time.Time // local time the websocket read returned
}

// FromMessage converts a STOMP MESSAGE frame. Other commands and frames
// without a destination are rejected.
func FromMessage(f stomp.Frame, receivedAt time.Time) (Frame, bool) {
	if f.Command != stomp.CmdMessage {
		return Frame{}, false
	}
	dest, ok := f.Lookup(stomp.HdrDestination)
	if !ok || dest == "" {
		return Frame{}, false
	}
	return Frame{
		Topic:      dest,
		Body:       f.Body,
		ReceivedAt: receivedAt,
	}, true
}

// Lookup resolves a topic to its handler.
type Lookup interface {
	Lookup(topic string) (subscription.Handler, bool)
}

// Stats contains runtime statistics.
type Stats struct {
	Received      int64 // frames handed to Dispatch
	Dispatched    int64 // frames whose handler returned nil
	Unrouted      int64 // frames for topics nobody wants
	DecodeErrors  int64
	HandlerErrors int64
	Panics        int64
}
