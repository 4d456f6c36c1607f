package connection

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/coin-stream/internal/stomp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeClient is an in-memory transport recording every frame sent.
type fakeClient struct {
	mu         sync.Mutex
	frames     []stomp.Frame
	heartbeats int
	closed     bool

	messages chan TimestampedMessage
	errors   chan error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan TimestampedMessage, 100),
		errors:   make(chan error, 1),
	}
}

func (f *fakeClient) Connect(context.Context) error { return nil }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotConnected
	}
	if stomp.IsHeartbeat(data) {
		f.heartbeats++
		return nil
	}
	frames, err := stomp.Decode(data)
	if err != nil {
		return err
	}
	f.frames = append(f.frames, frames...)
	return nil
}

func (f *fakeClient) Messages() <-chan TimestampedMessage { return f.messages }
func (f *fakeClient) Errors() <-chan error                { return f.errors }

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// deliver pushes frames to the client as one websocket message.
func (f *fakeClient) deliver(frames ...stomp.Frame) {
	var data []byte
	for _, fr := range frames {
		data = append(data, fr.Encode()...)
	}
	f.deliverRaw(data)
}

func (f *fakeClient) deliverRaw(data []byte) {
	f.messages <- TimestampedMessage{Data: data, ReceivedAt: time.Now()}
}

func (f *fakeClient) fail(err error) {
	f.errors <- err
}

func (f *fakeClient) sent() []stomp.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stomp.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeClient) sentCommand(cmd string) []stomp.Frame {
	var out []stomp.Frame
	for _, fr := range f.sent() {
		if fr.Command == cmd {
			out = append(out, fr)
		}
	}
	return out
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeClient) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

// fakeDialer hands out fakeClients, or fails while err is set.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	err   error

	clients chan *fakeClient
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{clients: make(chan *fakeClient, 16)}
}

func (d *fakeDialer) dial(context.Context) (Client, error) {
	d.mu.Lock()
	d.dials++
	err := d.err
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	fc := newFakeClient()
	d.clients <- fc
	return fc, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(t *testing.T) *fakeClient {
	t.Helper()
	select {
	case fc := <-d.clients:
		return fc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://stream.test:8080/websocket"
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.HeartbeatOutgoing = 0
	cfg.HeartbeatIncoming = 0
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.QueueSize = 16
	return cfg
}

func connectedFrame(heartBeat string) stomp.Frame {
	return stomp.New(stomp.CmdConnected,
		stomp.HdrVersion, "1.2",
		stomp.HdrHeartBeat, heartBeat,
	)
}

func messageFrame(topic, body string) stomp.Frame {
	f := stomp.New(stomp.CmdMessage,
		stomp.HdrDestination, topic,
		stomp.HdrMessageID, "m-1",
		stomp.HdrSubscription, "s-1",
	)
	f.Body = []byte(body)
	return f
}

// open connects c through d and completes the STOMP handshake.
func open(t *testing.T, c *Conn, d *fakeDialer) *fakeClient {
	t.Helper()
	c.Connect()
	fc := d.next(t)
	eventually(t, "CONNECT frame", func() bool { return len(fc.sentCommand(stomp.CmdConnect)) == 1 })
	fc.deliver(connectedFrame("0,0"))
	eventually(t, "connected state", c.IsConnected)
	return fc
}

func destinations(frames []stomp.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Get(stomp.HdrDestination)
	}
	return out
}
