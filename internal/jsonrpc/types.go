// ABOUTME: JSON-RPC 2.0 message types for the connection layer
// ABOUTME: Implements request, notification, response, and error structures

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const Version = "2.0"

// Message is one of *Request or *Response. A *Request with no ID is a
// notification.
type Message interface {
	message()
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

func (r *Request) message() {}

// IsNotification reports whether this request carries no correlation id and
// therefore expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

func (r *Response) message() {}

// ErrorObject is the wire representation of a failure.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NumberID renders an integer correlation id as a raw JSON token.
func NumberID(n int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(n, 10))
}

// IDKey returns the canonical map key for a correlation id. JSON-RPC ids may
// be numbers or strings; both compare correctly after whitespace trimming.
func IDKey(id json.RawMessage) string {
	return string(bytes.TrimSpace(id))
}
