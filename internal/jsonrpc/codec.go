// ABOUTME: Strict encode/decode for JSON-RPC 2.0 frames
// ABOUTME: Classifies incoming bytes as request, notification, or response

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrParse indicates the frame was not valid JSON.
	ErrParse = errors.New("jsonrpc: parse error")
	// ErrInvalidMessage indicates valid JSON that is not a valid JSON-RPC
	// 2.0 message.
	ErrInvalidMessage = errors.New("jsonrpc: invalid message")
)

// ParamsShape classifies the params member of a request.
type ParamsShape int

const (
	ShapeNone ParamsShape = iota
	ShapeArray
	ShapeObject
	ShapeInvalid
)

// ShapeOf inspects the first significant byte of a raw params value.
// JSON-RPC 2.0 only permits arrays, objects, or an absent params member.
func ShapeOf(params json.RawMessage) ParamsShape {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ShapeNone
	}
	switch trimmed[0] {
	case '[':
		return ShapeArray
	case '{':
		return ShapeObject
	default:
		return ShapeInvalid
	}
}

// Encode serializes a message to a single wire frame.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		if m.Method == "" {
			return nil, fmt.Errorf("%w: request without method", ErrInvalidMessage)
		}
	case *Response:
		if (m.Result != nil) == (m.Error != nil) {
			return nil, fmt.Errorf("%w: response must carry exactly one of result or error", ErrInvalidMessage)
		}
	default:
		return nil, fmt.Errorf("%w: unknown message type %T", ErrInvalidMessage, msg)
	}
	return json.Marshal(msg)
}

// envelope is a superset of all message shapes, used to classify a frame
// before committing to a concrete type.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *ErrorObject    `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// Decode parses one frame into a *Request (possibly a notification) or a
// *Response. Malformed input fails with ErrParse; well-formed JSON that
// violates the JSON-RPC 2.0 grammar fails with ErrInvalidMessage.
func Decode(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if env.JSONRPC != Version {
		return nil, fmt.Errorf("%w: jsonrpc member is %q, want %q", ErrInvalidMessage, env.JSONRPC, Version)
	}

	if env.Method != "" {
		if env.Result != nil || env.Error != nil {
			return nil, fmt.Errorf("%w: request carries a result or error member", ErrInvalidMessage)
		}
		if ShapeOf(env.Params) == ShapeInvalid {
			return nil, fmt.Errorf("%w: params must be an array or object", ErrInvalidMessage)
		}
		return &Request{
			JSONRPC: env.JSONRPC,
			Method:  env.Method,
			Params:  env.Params,
			ID:      normalizeID(env.ID),
		}, nil
	}

	if (env.Result != nil) == (env.Error != nil) {
		return nil, fmt.Errorf("%w: response must carry exactly one of result or error", ErrInvalidMessage)
	}
	id := normalizeID(env.ID)
	if len(id) == 0 && env.Error == nil {
		return nil, fmt.Errorf("%w: response without id", ErrInvalidMessage)
	}
	return &Response{
		JSONRPC: env.JSONRPC,
		Result:  env.Result,
		Error:   env.Error,
		ID:      id,
	}, nil
}

// normalizeID treats a JSON null id the same as an absent one.
func normalizeID(id json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(id)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
