package stomp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatHeartBeat renders the heart-beat header value "out,in" in milliseconds.
func FormatHeartBeat(out, in time.Duration) string {
	return strconv.FormatInt(out.Milliseconds(), 10) + "," + strconv.FormatInt(in.Milliseconds(), 10)
}

// ParseHeartBeat parses a heart-beat header value. An empty value means
// the peer does not do heart-beating.
func ParseHeartBeat(v string) (out, in time.Duration, err error) {
	if strings.TrimSpace(v) == "" {
		return 0, 0, nil
	}
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	if err != nil || x < 0 {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if err != nil || y < 0 {
		return 0, 0, fmt.Errorf("%w: heart-beat %q", ErrMalformedFrame, v)
	}
	return time.Duration(x) * time.Millisecond, time.Duration(y) * time.Millisecond, nil
}

// NegotiateHeartBeat combines the client's wanted intervals with the
// server's CONNECTED heart-beat header. A zero result disables that
// direction.
func NegotiateHeartBeat(clientOut, clientIn time.Duration, server string) (out, in time.Duration, err error) {
	serverOut, serverIn, err := ParseHeartBeat(server)
	if err != nil {
		return 0, 0, err
	}
	if clientOut > 0 && serverIn > 0 {
		out = max(clientOut, serverIn)
	}
	if clientIn > 0 && serverOut > 0 {
		in = max(clientIn, serverOut)
	}
	return out, in, nil
}
