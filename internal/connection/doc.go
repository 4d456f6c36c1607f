// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one WebSocket connection carrying STOMP 1.2 frames
//   - Drives Disconnected → Connecting → Connected → Reconnecting
//   - Reconnects after a fixed delay, restarted on every failure
//   - Negotiates STOMP heart-beats and treats silence as a transport error
//   - Replays the subscription registry on every connect, before OnConnect
//   - Routes MESSAGE frames to the Dispatcher
//
// Every state change runs on a single event-loop goroutine fed by an
// unbounded queue, so handlers run one at a time and may re-enter the
// manager freely.
package connection
