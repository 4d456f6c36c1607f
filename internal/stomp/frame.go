// Package stomp encodes and decodes STOMP 1.2 frames carried inside
// WebSocket text messages.
//
// One WebSocket message may hold several frames. A message made only of
// end-of-line bytes is a heart-beat and decodes to zero frames.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Client commands.
const (
	CmdConnect     = "CONNECT"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdDisconnect  = "DISCONNECT"
)

// Server commands.
const (
	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdReceipt   = "RECEIPT"
	CmdError     = "ERROR"
)

// Header names used by this client.
const (
	HdrAcceptVersion = "accept-version"
	HdrAck           = "ack"
	HdrContentLength = "content-length"
	HdrContentType   = "content-type"
	HdrDestination   = "destination"
	HdrHeartBeat     = "heart-beat"
	HdrHost          = "host"
	HdrID            = "id"
	HdrMessage       = "message"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrSubscription  = "subscription"
	HdrVersion       = "version"
)

// Errors
var (
	ErrMalformedFrame = errors.New("malformed stomp frame")
)

// Heartbeat is the payload sent as a client heart-beat.
var Heartbeat = []byte{'\n'}

// Header is a single frame header. Order is preserved because STOMP gives
// the first occurrence of a repeated header precedence.
type Header struct {
	Key   string
	Value string
}

// Frame is one STOMP frame.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// New builds a frame from alternating header keys and values.
func New(command string, kv ...string) Frame {
	f := Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Get returns the first value of the named header, or "".
func (f Frame) Get(key string) string {
	v, _ := f.Lookup(key)
	return v
}

// Lookup returns the first value of the named header.
func (f Frame) Lookup(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Set replaces the first occurrence of key, or appends it.
func (f *Frame) Set(key, value string) {
	for i := range f.Headers {
		if f.Headers[i].Key == key {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Key: key, Value: value})
}

// Encode serializes the frame. A content-length header is added for
// non-empty bodies when absent.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	escape := escapes(f.Command)

	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, h := range f.Headers {
		if escape {
			buf.WriteString(escapeValue(h.Key))
			buf.WriteByte(':')
			buf.WriteString(escapeValue(h.Value))
		} else {
			buf.WriteString(h.Key)
			buf.WriteByte(':')
			buf.WriteString(h.Value)
		}
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		if _, ok := f.Lookup(HdrContentLength); !ok {
			buf.WriteString(HdrContentLength)
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(len(f.Body)))
			buf.WriteByte('\n')
		}
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses every frame in data. Leading end-of-lines between frames
// are heart-beats and are skipped.
func Decode(data []byte) ([]Frame, error) {
	var frames []Frame
	for {
		data = skipEOL(data)
		if len(data) == 0 {
			return frames, nil
		}
		f, rest, err := decodeOne(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

// IsHeartbeat reports whether data holds nothing but end-of-lines.
func IsHeartbeat(data []byte) bool {
	return len(data) > 0 && len(skipEOL(data)) == 0
}

func decodeOne(data []byte) (Frame, []byte, error) {
	line, data, ok := cutLine(data)
	if !ok {
		return Frame{}, nil, fmt.Errorf("%w: unterminated command", ErrMalformedFrame)
	}
	if !validCommand(line) {
		return Frame{}, nil, fmt.Errorf("%w: bad command %q", ErrMalformedFrame, line)
	}

	f := Frame{Command: line}
	escape := escapes(f.Command)

	for {
		line, data, ok = cutLine(data)
		if !ok {
			return Frame{}, nil, fmt.Errorf("%w: unterminated headers", ErrMalformedFrame)
		}
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return Frame{}, nil, fmt.Errorf("%w: header without colon %q", ErrMalformedFrame, line)
		}
		if escape {
			var err error
			if key, err = unescapeValue(key); err != nil {
				return Frame{}, nil, err
			}
			if value, err = unescapeValue(value); err != nil {
				return Frame{}, nil, err
			}
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	if cl, ok := f.Lookup(HdrContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return Frame{}, nil, fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, cl)
		}
		if len(data) < n+1 || data[n] != 0 {
			return Frame{}, nil, fmt.Errorf("%w: body shorter than content-length", ErrMalformedFrame)
		}
		f.Body = data[:n:n]
		return f, data[n+1:], nil
	}

	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return Frame{}, nil, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}
	f.Body = data[:end:end]
	return f, data[end+1:], nil
}

func cutLine(data []byte) (string, []byte, bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", nil, false
	}
	line := data[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return string(line), data[i+1:], true
}

func skipEOL(data []byte) []byte {
	for len(data) > 0 {
		switch {
		case data[0] == '\n':
			data = data[1:]
		case data[0] == '\r' && len(data) > 1 && data[1] == '\n':
			data = data[2:]
		default:
			return data
		}
	}
	return data
}

func validCommand(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// CONNECT and CONNECTED frames never escape header values.
func escapes(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeValue(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeValue(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformedFrame)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("%w: undefined escape \\%c", ErrMalformedFrame, s[i])
		}
	}
	return b.String(), nil
}
