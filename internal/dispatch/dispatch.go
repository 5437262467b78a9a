// ABOUTME: Dispatch table routing inbound JSON-RPC requests to handlers
// ABOUTME: Converts handler outcomes into wire-ready results or error objects

package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/harper/rpcmux/internal/jsonrpc"
	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/rpcerr"
)

// Handler signatures accepted by Register. The signature declares the
// calling convention: JSON-RPC forbids mixing positional and named
// arguments in one call, so a handler takes one shape or the other.
type (
	// NoParamsFunc handles methods called without params.
	NoParamsFunc func(ctx *Context) (any, error)
	// PositionalFunc handles methods whose params are an ordered array.
	PositionalFunc func(ctx *Context, args []json.RawMessage) (any, error)
	// NamedFunc handles methods whose params are a key/value object.
	NamedFunc func(ctx *Context, kwargs map[string]json.RawMessage) (any, error)
)

type convention int

const (
	convNone convention = iota
	convPositional
	convNamed
)

type handler struct {
	conv  convention
	none  NoParamsFunc
	pos   PositionalFunc
	named NamedFunc
}

// Table maps method names to handlers. Build it once at startup with
// Register; after that it is read concurrently by any number of in-flight
// dispatches.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]*handler
}

func New() *Table {
	return &Table{handlers: make(map[string]*handler)}
}

// Register adds a handler for a method name. Registering a duplicate name
// or an unsupported signature is a configuration error, reported at setup
// rather than at call time.
func (t *Table) Register(method string, fn any) error {
	h := &handler{}
	switch f := fn.(type) {
	case NoParamsFunc:
		h.conv, h.none = convNone, f
	case func(ctx *Context) (any, error):
		h.conv, h.none = convNone, f
	case PositionalFunc:
		h.conv, h.pos = convPositional, f
	case func(ctx *Context, args []json.RawMessage) (any, error):
		h.conv, h.pos = convPositional, f
	case NamedFunc:
		h.conv, h.named = convNamed, f
	case func(ctx *Context, kwargs map[string]json.RawMessage) (any, error):
		h.conv, h.named = convNamed, f
	default:
		return fmt.Errorf("dispatch: unsupported handler signature %T for method %q", fn, method)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[method]; exists {
		return fmt.Errorf("dispatch: method %q already registered", method)
	}
	t.handlers[method] = h
	return nil
}

// MustRegister is Register that panics on configuration errors, for use in
// static setup blocks.
func (t *Table) MustRegister(method string, fn any) {
	if err := t.Register(method, fn); err != nil {
		panic(err)
	}
}

// Methods returns the registered method names, sorted.
func (t *Table) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Outcome is the wire-ready result of one dispatch: exactly one of Result
// or Err is meaningful. A nil *Outcome means nothing should be sent (the
// inbound message was a notification).
type Outcome struct {
	Result any
	Err    *jsonrpc.ErrorObject
}

// Dispatch routes one inbound request or notification to its handler and
// captures the outcome. Handler panics and unanticipated errors are logged
// in full locally and downgraded to a generic Internal-Error object; only
// *rpcerr.Error values cross the wire with their own code and data.
func (t *Table) Dispatch(ctx *Context, req *jsonrpc.Request) *Outcome {
	t.mu.RLock()
	h, ok := t.handlers[req.Method]
	t.mu.RUnlock()

	if !ok {
		if req.IsNotification() {
			// No response channel exists for a notification.
			logger.Debug("dropping notification for unknown method %q", req.Method)
			return nil
		}
		return &Outcome{Err: rpcerr.New(rpcerr.CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method)).Wire()}
	}

	result, err := t.invoke(ctx, h, req)
	if err != nil {
		if req.IsNotification() {
			logger.Warn("notification handler %q failed: %v", req.Method, err)
			return nil
		}
		var rpcErr *rpcerr.Error
		if errors.As(err, &rpcErr) {
			return &Outcome{Err: rpcErr.Wire()}
		}
		// No internal fault detail crosses the wire.
		logger.Error("unhandled error in handler %q: %v", req.Method, err)
		return &Outcome{Err: rpcerr.ErrInternal.Wire()}
	}

	if req.IsNotification() {
		return nil
	}
	return &Outcome{Result: result}
}

// invoke checks the params shape against the handler's convention and runs
// the handler with panic containment.
func (t *Table) invoke(ctx *Context, h *handler, req *jsonrpc.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler %q panicked: %v\n%s", req.Method, r, debug.Stack())
			err = rpcerr.ErrInternal
		}
	}()

	shape := jsonrpc.ShapeOf(req.Params)
	switch h.conv {
	case convNone:
		if shape != jsonrpc.ShapeNone && !emptyParams(req.Params, shape) {
			return nil, rpcerr.New(rpcerr.CodeInvalidParams, fmt.Sprintf("method %q takes no params", req.Method))
		}
		return h.none(ctx)

	case convPositional:
		if shape == jsonrpc.ShapeObject {
			return nil, rpcerr.New(rpcerr.CodeInvalidParams, fmt.Sprintf("method %q takes positional params, got an object", req.Method))
		}
		var args []json.RawMessage
		if shape == jsonrpc.ShapeArray {
			if err := json.Unmarshal(req.Params, &args); err != nil {
				return nil, rpcerr.New(rpcerr.CodeInvalidParams, "params array is malformed")
			}
		}
		return h.pos(ctx, args)

	default: // convNamed
		if shape == jsonrpc.ShapeArray {
			return nil, rpcerr.New(rpcerr.CodeInvalidParams, fmt.Sprintf("method %q takes named params, got an array", req.Method))
		}
		kwargs := map[string]json.RawMessage{}
		if shape == jsonrpc.ShapeObject {
			if err := json.Unmarshal(req.Params, &kwargs); err != nil {
				return nil, rpcerr.New(rpcerr.CodeInvalidParams, "params object is malformed")
			}
		}
		return h.named(ctx, kwargs)
	}
}

// emptyParams reports whether params is an empty array or object, which a
// no-params handler tolerates.
func emptyParams(params json.RawMessage, shape jsonrpc.ParamsShape) bool {
	switch shape {
	case jsonrpc.ShapeArray:
		var args []json.RawMessage
		return json.Unmarshal(params, &args) == nil && len(args) == 0
	case jsonrpc.ShapeObject:
		var kwargs map[string]json.RawMessage
		return json.Unmarshal(params, &kwargs) == nil && len(kwargs) == 0
	default:
		return false
	}
}
