// Package codec converts between message bodies and model types.
//
// Inbound bodies are JSON documents, one per STOMP MESSAGE frame. Every
// decode failure wraps ErrDecode so the dispatcher can tell a malformed
// payload apart from a failing callback.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/coin-stream/internal/model"
)

// Errors
var (
	ErrDecode = errors.New("decode payload")
)

// ContentType is the content-type header value of published bodies.
const ContentType = "application/json"

// DecodeFunc turns a raw message body into a typed payload.
type DecodeFunc[T any] func(body []byte) (T, error)

// JSON decodes body into a T.
func JSON[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// Raw returns the body unchanged after checking it is valid JSON.
func Raw(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrDecode)
	}
	return json.RawMessage(body), nil
}

// Encode serializes an outgoing publish body. Byte slices and
// json.RawMessage are sent as-is.
func Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// ChatDraft builds an outbound chat message. Sender and timestamp stay
// blank: the server fills both from the connection identity and its clock.
func ChatDraft(content string) model.ChatMessage {
	return model.ChatMessage{
		Sender:    "",
		Content:   content,
		Timestamp: "",
	}
}
