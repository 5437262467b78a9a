// ABOUTME: Typed JSON-RPC errors and reserved protocol error codes
// ABOUTME: Converts between Go errors and wire ErrorObjects

package rpcerr

import (
	"encoding/json"
	"fmt"

	"github.com/harper/rpcmux/internal/jsonrpc"
)

// Reserved JSON-RPC 2.0 error codes. The protocol reserves the whole range
// -32768..-32000 for its own use.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	reservedMin = -32768
	reservedMax = -32000
)

// Error is a failure with a JSON-RPC error code attached. It is what a
// caller of Conn.Call receives when the peer reports an ErrorObject, and
// what handlers return to control the ErrorObject sent back to the peer.
type Error struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, rpcerr.ErrMethodNotFound)
// works regardless of the message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wire converts the error to its wire representation.
func (e *Error) Wire() *jsonrpc.ErrorObject {
	return &jsonrpc.ErrorObject{Code: e.Code, Message: e.Message, Data: e.Data}
}

// New builds an Error with an explicit code and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewWithData builds an Error carrying a JSON-marshalable data payload.
func NewWithData(code int, message string, data any) (*Error, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal error data: %w", err)
	}
	return &Error{Code: code, Message: message, Data: raw}, nil
}

// Sentinels for the built-in protocol error kinds. Use errors.Is to match.
var (
	ErrParse          = &Error{Code: CodeParseError, Message: "Parse error"}
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Message: "Invalid request"}
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: "Method not found"}
	ErrInvalidParams  = &Error{Code: CodeInvalidParams, Message: "Invalid params"}
	ErrInternal       = &Error{Code: CodeInternalError, Message: "Internal error"}
)

// Reserved reports whether a code falls in the protocol-reserved range.
func Reserved(code int) bool {
	return code >= reservedMin && code <= reservedMax
}
