// ABOUTME: Registry mapping numeric error codes to error kinds
// ABOUTME: Reconstructs typed errors from ErrorObjects received off the wire

package rpcerr

import (
	"fmt"
	"sync"

	"github.com/harper/rpcmux/internal/jsonrpc"
)

// Kind is one entry in the error taxonomy: a code plus the message used
// when the wire carries none.
type Kind struct {
	Code           int
	DefaultMessage string
}

// Registry maps error codes to kinds. The reserved protocol kinds are
// always present; applications add their own codes outside the reserved
// range with Register.
type Registry struct {
	mu    sync.RWMutex
	kinds map[int]Kind
}

func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[int]Kind)}
	for _, e := range []*Error{ErrParse, ErrInvalidRequest, ErrMethodNotFound, ErrInvalidParams, ErrInternal} {
		r.kinds[e.Code] = Kind{Code: e.Code, DefaultMessage: e.Message}
	}
	return r
}

// Default is the registry used when a connection is not given its own.
var Default = NewRegistry()

// Register adds an application error kind. Registering a reserved code or
// a code that is already present is a configuration error.
func (r *Registry) Register(code int, defaultMessage string) error {
	if Reserved(code) {
		return fmt.Errorf("rpcerr: code %d is inside the reserved range %d..%d", code, reservedMin, reservedMax)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[code]; exists {
		return fmt.Errorf("rpcerr: code %d is already registered", code)
	}
	r.kinds[code] = Kind{Code: code, DefaultMessage: defaultMessage}
	return nil
}

// KindForCode returns the kind registered for a code. The lookup is total:
// an unknown code resolves to a generic application kind carrying the code
// unchanged, so any peer-supplied ErrorObject can be reconstructed.
func (r *Registry) KindForCode(code int) Kind {
	r.mu.RLock()
	k, ok := r.kinds[code]
	r.mu.RUnlock()
	if ok {
		return k
	}
	return Kind{Code: code, DefaultMessage: "Application error"}
}

// FromWire reconstructs a typed error from a received ErrorObject. The
// wire message and data are preserved verbatim; the registry only supplies
// a default message when the wire carries none.
func (r *Registry) FromWire(obj *jsonrpc.ErrorObject) *Error {
	msg := obj.Message
	if msg == "" {
		msg = r.KindForCode(obj.Code).DefaultMessage
	}
	return &Error{Code: obj.Code, Message: msg, Data: obj.Data}
}
