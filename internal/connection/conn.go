package connection

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickgao/coin-stream/internal/codec"
	"github.com/rickgao/coin-stream/internal/router"
	"github.com/rickgao/coin-stream/internal/stomp"
	"github.com/rickgao/coin-stream/internal/subscription"
)

// Option configures a Conn.
type Option func(*Conn)

// WithOnConnect registers fn to run after every successful (re)connect,
// once all registered topics have been subscribed again.
func WithOnConnect(fn func()) Option {
	return func(c *Conn) { c.onConnect = append(c.onConnect, fn) }
}

// WithOnError registers fn for server-side rejections (STOMP ERROR frames).
// The error is a *ProtocolError. Transport failures are not reported here;
// they only cause a reconnect.
func WithOnError(fn func(error)) Option {
	return func(c *Conn) { c.onError = append(c.onError, fn) }
}

// WithDialer replaces the WebSocket dialer, e.g. with a test transport.
func WithDialer(dial DialFunc) Option {
	return func(c *Conn) { c.dial = dial }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Conn owns the single streaming connection of a session and the registry
// of wanted topics.
//
// All state lives on one event-loop goroutine. Public methods enqueue work
// and return immediately; lifecycle callbacks and message handlers run on
// the loop, so a handler may call Subscribe or Unsubscribe without locking.
type Conn struct {
	cfg     Config
	logger  *slog.Logger
	dial    DialFunc
	limiter *rate.Limiter

	onConnect []func()
	onError   []func(error)

	events   *eventQueue
	loopDone chan struct{}
	closing  sync.Once

	// Loop-owned.
	registry   *subscription.Registry
	dispatcher *router.Dispatcher
	state      State
	gen        uint64
	sess       *session
	cancelDial context.CancelFunc
	retry      *time.Timer

	// Mirrors for readers on other goroutines.
	stateView atomic.Int32
	entries   atomic.Int64
	live      atomic.Int64

	attempts        atomic.Int64
	connects        atomic.Int64
	transportErrors atomic.Int64
	protocolErrors  atomic.Int64
	frameErrors     atomic.Int64
	sent            atomic.Int64
	dropped         atomic.Int64
}

// session is one connection attempt. Events carrying an older session are
// stale and ignored.
type session struct {
	gen       uint64
	client    Client
	stop      chan struct{}
	handshake *time.Timer

	lastSeen  atomic.Int64 // unix nanos of the last inbound message
	hbTimeout atomic.Int64 // nanos, 0 = no heart-beat check
}

func (s *session) touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

// New creates a Conn in the Disconnected state and starts its event loop.
// Call Close at application exit.
func New(cfg Config, opts ...Option) *Conn {
	c := &Conn{
		cfg:      cfg,
		logger:   slog.Default(),
		events:   newEventQueue(cfg.QueueSize),
		loopDone: make(chan struct{}),
		registry: subscription.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = c.dialWebSocket
	}
	if cfg.PublishRate > 0 {
		burst := cfg.PublishBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), burst)
	}
	c.dispatcher = router.NewDispatcher(c.registry, c.logger)

	go c.loop()
	return c
}

// Connect starts connecting. It is a no-op unless the Conn is Disconnected.
func (c *Conn) Connect() {
	c.enqueue(c.connect)
}

// Disconnect unsubscribes every live handle, closes the transport and
// cancels any pending reconnect. Registered topics are kept and replayed on
// the next Connect.
func (c *Conn) Disconnect() {
	c.enqueue(c.disconnect)
}

// Close disconnects and stops the event loop. Safe to call more than once.
func (c *Conn) Close() error {
	c.closing.Do(func() {
		c.enqueue(c.disconnect)
		c.events.close()
	})
	<-c.loopDone
	return nil
}

// IsActive reports whether the Conn is connected or trying to be.
func (c *Conn) IsActive() bool {
	return c.State() != StateDisconnected
}

// IsConnected reports whether the STOMP session is established.
func (c *Conn) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current state.
func (c *Conn) State() State {
	return State(c.stateView.Load())
}

// Subscribe registers handler for topic, replacing any previous handler.
// The topic is subscribed on the transport now if connected, otherwise on
// the next connect.
func (c *Conn) Subscribe(topic string, handler subscription.Handler) {
	c.enqueue(func() { c.subscribe(topic, "", handler) })
}

// Unsubscribe removes topic. Unknown topics are ignored.
func (c *Conn) Unsubscribe(topic string) {
	c.enqueue(func() { c.unsubscribe(topic) })
}

// Reconcile makes the topics of group match bindings, subscribing only the
// new topics and unsubscribing only the ones no longer wanted. Topics that
// stay get the new handler without touching the transport.
func (c *Conn) Reconcile(group string, bindings []subscription.Binding) {
	bindings = slices.Clone(bindings)
	c.enqueue(func() { c.reconcile(group, bindings) })
}

// Publish sends body to destination. Bodies are JSON encoded unless they
// are already bytes. Publishing while not connected drops the message and
// returns ErrNotConnected.
func (c *Conn) Publish(destination string, body any) error {
	data, err := codec.Encode(body)
	if err != nil {
		return err
	}
	if !c.IsConnected() {
		c.dropped.Add(1)
		c.logger.Warn("publish dropped, not connected", "destination", destination)
		return ErrNotConnected
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.dropped.Add(1)
		return ErrRateLimited
	}
	c.enqueue(func() { c.publish(destination, data) })
	return nil
}

// Stats returns current statistics.
func (c *Conn) Stats() Stats {
	return Stats{
		State:            c.State(),
		Subscriptions:    int(c.entries.Load()),
		LiveHandles:      int(c.live.Load()),
		Attempts:         c.attempts.Load(),
		Connects:         c.connects.Load(),
		TransportErrors:  c.transportErrors.Load(),
		ProtocolErrors:   c.protocolErrors.Load(),
		FrameErrors:      c.frameErrors.Load(),
		PublishesSent:    c.sent.Load(),
		PublishesDropped: c.dropped.Load(),
		QueueDepth:       c.events.len(),
	}
}

// RouterStats returns the dispatcher statistics.
func (c *Conn) RouterStats() router.Stats {
	return c.dispatcher.Stats()
}

// -----------------------------------------------------------------------------
// Event loop
// -----------------------------------------------------------------------------

func (c *Conn) enqueue(fn func()) bool {
	if !c.events.push(fn) {
		c.logger.Debug("event dropped, connection closed")
		return false
	}
	return true
}

func (c *Conn) loop() {
	defer close(c.loopDone)

	for {
		fn, ok := c.events.pop()
		if !ok {
			return
		}
		fn()
		c.mirror()
	}
}

// mirror copies loop-owned counts for Stats.
func (c *Conn) mirror() {
	c.entries.Store(int64(c.registry.Len()))
	c.live.Store(int64(c.registry.LiveCount()))
}

func (c *Conn) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("connection state", "from", c.state.String(), "to", s.String())
	c.state = s
	c.mirror()
	c.stateView.Store(int32(s))
}

func (c *Conn) connect() {
	if c.state != StateDisconnected {
		return
	}
	c.startAttempt()
}

// startAttempt dials in the background; the result comes back as an event.
func (c *Conn) startAttempt() {
	c.gen++
	gen := c.gen
	c.setState(StateConnecting)
	c.attempts.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel

	c.logger.Info("connecting", "url", c.cfg.URL, "attempt", gen)

	go func() {
		cl, err := c.dial(ctx)
		if !c.enqueue(func() { c.dialed(gen, cl, err) }) && cl != nil {
			cl.Close()
		}
	}()
}

func (c *Conn) dialed(gen uint64, cl Client, err error) {
	if gen != c.gen || c.state != StateConnecting {
		if cl != nil {
			cl.Close()
		}
		return
	}
	c.cancelDial = nil

	if err != nil {
		c.transportErrors.Add(1)
		c.logger.Warn("connect failed", "error", err)
		c.scheduleRetry(gen)
		return
	}

	s := &session{
		gen:    gen,
		client: cl,
		stop:   make(chan struct{}),
	}
	s.touch(time.Now())
	c.sess = s
	go c.pump(s)

	if err := c.send(s, c.connectFrame()); err != nil {
		c.lost(s, err)
		return
	}
	if c.cfg.HandshakeTimeout > 0 {
		s.handshake = time.AfterFunc(c.cfg.HandshakeTimeout, func() {
			c.enqueue(func() {
				if c.sess == s && c.state == StateConnecting {
					c.lost(s, ErrHandshakeTimeout)
				}
			})
		})
	}
}

// scheduleRetry waits ReconnectDelay, then dials again. The delay starts
// fresh on every failure.
func (c *Conn) scheduleRetry(gen uint64) {
	c.setState(StateReconnecting)
	if c.retry != nil {
		c.retry.Stop()
	}

	c.logger.Info("reconnecting", "delay", c.cfg.ReconnectDelay)
	c.retry = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.enqueue(func() {
			if c.gen == gen && c.state == StateReconnecting {
				c.retry = nil
				c.startAttempt()
			}
		})
	})
}

// lost tears down s after a transport failure and schedules a reconnect.
func (c *Conn) lost(s *session, err error) {
	if c.sess != s {
		return
	}
	c.transportErrors.Add(1)
	c.logger.Warn("connection lost", "error", err, "state", c.state.String())

	c.closeSession()
	c.scheduleRetry(s.gen)
}

func (c *Conn) closeSession() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	close(s.stop)
	if s.handshake != nil {
		s.handshake.Stop()
	}
	if err := s.client.Close(); err != nil {
		c.logger.Debug("close client", "error", err)
	}
	c.registry.ClearHandles()
}

func (c *Conn) disconnect() {
	if c.state == StateDisconnected {
		return
	}

	// Invalidate in-flight dials and timers of the current generation.
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	if s := c.sess; s != nil && c.state == StateConnected {
		for _, e := range c.registry.Entries() {
			if e.Live() {
				c.sendQuiet(s, stomp.New(stomp.CmdUnsubscribe, stomp.HdrID, e.Handle))
			}
		}
		c.sendQuiet(s, stomp.New(stomp.CmdDisconnect))
	}
	c.closeSession()
	c.registry.ClearHandles()
	c.setState(StateDisconnected)

	c.logger.Info("disconnected", "subscriptions", c.registry.Len())
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

// pump moves messages of one session onto the event loop and watches the
// STOMP heart-beat.
func (c *Conn) pump(s *session) {
	check := time.NewTicker(c.heartbeatCheckInterval())
	defer check.Stop()

	msgs := s.client.Messages()
	errs := s.client.Errors()

	for {
		select {
		case <-s.stop:
			return

		case msg := <-msgs:
			s.touch(msg.ReceivedAt)
			if stomp.IsHeartbeat(msg.Data) {
				continue
			}
			frames, err := stomp.Decode(msg.Data)
			if err != nil {
				c.frameErrors.Add(1)
				c.logger.Warn("dropping malformed stomp frame", "bytes", len(msg.Data), "error", err)
			}
			if len(frames) > 0 {
				c.enqueue(func() { c.handleFrames(s, frames, msg.ReceivedAt) })
			}

		case err := <-errs:
			c.enqueue(func() { c.lost(s, err) })
			return

		case now := <-check.C:
			timeout := time.Duration(s.hbTimeout.Load())
			if timeout <= 0 {
				continue
			}
			if silent := now.Sub(time.Unix(0, s.lastSeen.Load())); silent > timeout {
				c.logger.Warn("no heart-beat from server", "silent", silent, "timeout", timeout)
				c.enqueue(func() { c.lost(s, ErrHeartbeatTimeout) })
				return
			}
		}
	}
}

func (c *Conn) heartbeatCheckInterval() time.Duration {
	d := time.Second
	if in := c.cfg.HeartbeatIncoming; in > 0 && in/2 < d {
		d = in / 2
	}
	if t := c.cfg.HeartbeatTimeout; t > 0 && t/2 < d {
		d = t / 2
	}
	return max(d, 10*time.Millisecond)
}

func (c *Conn) handleFrames(s *session, frames []stomp.Frame, receivedAt time.Time) {
	for _, f := range frames {
		// A handler may have disconnected or the session may have failed.
		if c.sess != s {
			return
		}
		switch f.Command {
		case stomp.CmdConnected:
			c.connected(s, f)
		case stomp.CmdMessage:
			if c.state != StateConnected {
				continue
			}
			if frame, ok := router.FromMessage(f, receivedAt); ok {
				c.dispatcher.Dispatch(frame)
			}
		case stomp.CmdReceipt:
			c.logger.Debug("receipt", "id", f.Get(stomp.HdrReceiptID))
		case stomp.CmdError:
			c.protocolError(f)
		default:
			c.logger.Debug("ignoring frame", "command", f.Command)
		}
	}
}

// connected completes the handshake: every registered topic is subscribed
// again, in registry order, before OnConnect callbacks run.
func (c *Conn) connected(s *session, f stomp.Frame) {
	if c.state != StateConnecting {
		return
	}
	if s.handshake != nil {
		s.handshake.Stop()
	}

	out, in, err := stomp.NegotiateHeartBeat(c.cfg.HeartbeatOutgoing, c.cfg.HeartbeatIncoming, f.Get(stomp.HdrHeartBeat))
	if err != nil {
		c.logger.Warn("bad heart-beat header, heart-beating disabled", "error", err)
		out, in = 0, 0
	}
	s.touch(time.Now())
	s.hbTimeout.Store(int64(c.cfg.heartbeatTimeout(in)))
	if out > 0 {
		go c.heartbeat(s, out)
	}

	entries := c.registry.Entries()
	for _, e := range entries {
		c.subscribeLive(e.Topic)
	}
	c.setState(StateConnected)
	c.connects.Add(1)

	c.logger.Info("stomp connected",
		"version", f.Get(stomp.HdrVersion),
		"heartbeat_out", out,
		"heartbeat_in", in,
		"replayed", len(entries),
	)

	for _, fn := range c.onConnect {
		c.safely("on_connect", fn)
	}
}

func (c *Conn) protocolError(f stomp.Frame) {
	c.protocolErrors.Add(1)
	perr := &ProtocolError{
		Message: f.Get(stomp.HdrMessage),
		Body:    string(f.Body),
	}
	// The topic stays registered and is retried on the next replay.
	c.logger.Warn("server rejected request", "message", perr.Message, "body", perr.Body)

	for _, fn := range c.onError {
		c.safely("on_error", func() { fn(perr) })
	}
}

func (c *Conn) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}

// heartbeat sends a STOMP heart-beat every interval until s stops.
func (c *Conn) heartbeat(s *session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.client.Send(stomp.Heartbeat); err != nil {
				c.logger.Debug("failed to send heart-beat", "error", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

func (c *Conn) subscribe(topic, group string, h subscription.Handler) {
	old, replaced := c.registry.Put(topic, group, h)
	if replaced && old.Live() {
		c.unsubscribeLive(old.Handle)
	}
	if c.state == StateConnected {
		c.subscribeLive(topic)
	}
}

func (c *Conn) unsubscribe(topic string) {
	old, ok := c.registry.Delete(topic)
	if ok && old.Live() {
		c.unsubscribeLive(old.Handle)
	}
}

func (c *Conn) reconcile(group string, bindings []subscription.Binding) {
	plan := c.registry.Plan(group, bindings)

	for _, topic := range plan.Remove {
		c.unsubscribe(topic)
	}
	for _, b := range plan.Keep {
		c.registry.SetHandler(b.Topic, b.Handler)
	}
	for _, b := range plan.Add {
		c.subscribe(b.Topic, group, b.Handler)
	}

	if !plan.Empty() {
		c.logger.Debug("reconciled subscriptions",
			"group", group,
			"added", len(plan.Add),
			"removed", len(plan.Remove),
			"kept", len(plan.Keep),
		)
	}
}

// subscribeLive issues SUBSCRIBE for a registered topic with a fresh handle.
func (c *Conn) subscribeLive(topic string) {
	s := c.sess
	if s == nil {
		return
	}
	handle := uuid.NewString()
	f := stomp.New(stomp.CmdSubscribe,
		stomp.HdrID, handle,
		stomp.HdrDestination, topic,
		stomp.HdrAck, "auto",
	)
	if err := c.send(s, f); err != nil {
		// The read side reports the broken transport; replay retries it.
		c.logger.Warn("subscribe failed", "topic", topic, "error", err)
		return
	}
	c.registry.SetHandle(topic, handle)
}

func (c *Conn) unsubscribeLive(handle string) {
	if c.state != StateConnected || c.sess == nil {
		return
	}
	c.sendQuiet(c.sess, stomp.New(stomp.CmdUnsubscribe, stomp.HdrID, handle))
}

func (c *Conn) publish(destination string, body []byte) {
	s := c.sess
	if c.state != StateConnected || s == nil {
		c.dropped.Add(1)
		c.logger.Warn("publish dropped, not connected", "destination", destination)
		return
	}

	f := stomp.New(stomp.CmdSend,
		stomp.HdrDestination, destination,
		stomp.HdrContentType, codec.ContentType,
	)
	for _, k := range sortedKeys(c.cfg.SendHeaders) {
		f.Set(k, c.cfg.SendHeaders[k])
	}
	f.Body = body

	if err := c.send(s, f); err != nil {
		c.dropped.Add(1)
		c.logger.Warn("publish failed", "destination", destination, "error", err)
		return
	}
	c.sent.Add(1)
}

func (c *Conn) send(s *session, f stomp.Frame) error {
	return s.client.Send(f.Encode())
}

func (c *Conn) sendQuiet(s *session, f stomp.Frame) {
	if err := c.send(s, f); err != nil {
		c.logger.Debug("send failed", "command", f.Command, "error", err)
	}
}

func (c *Conn) connectFrame() stomp.Frame {
	f := stomp.New(stomp.CmdConnect,
		stomp.HdrAcceptVersion, "1.2",
		stomp.HdrHost, c.host(),
		stomp.HdrHeartBeat, stomp.FormatHeartBeat(c.cfg.HeartbeatOutgoing, c.cfg.HeartbeatIncoming),
	)
	for _, k := range sortedKeys(c.cfg.ConnectHeaders) {
		f.Set(k, c.cfg.ConnectHeaders[k])
	}
	return f
}

func (c *Conn) host() string {
	if c.cfg.Host != "" {
		return c.cfg.Host
	}
	if u, err := url.Parse(c.cfg.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "localhost"
}

func (c *Conn) dialWebSocket(ctx context.Context) (Client, error) {
	cl := NewClient(c.cfg.clientConfig(), c.logger)
	if err := cl.Connect(ctx); err != nil {
		return nil, err
	}
	return cl, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
