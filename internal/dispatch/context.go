// ABOUTME: Per-invocation handler context carrying the shared connection state
// ABOUTME: One state instance per connection, visible to every handler on it

package dispatch

import (
	"context"
	"encoding/json"

	"github.com/harper/rpcmux/internal/mux"
)

// Context is what a handler sees for one invocation. The Context value
// itself is per-invocation, but State returns the one connection-scoped
// instance shared by reference across every handler dispatched on that
// connection: a mutation made by one handler is visible to later (and
// concurrent) handlers on the same connection. The dispatcher takes no
// lock over it; guarding mutations is the application's concern.
type Context struct {
	context.Context

	conn   *mux.Conn
	state  any
	method string
	id     json.RawMessage
}

// Conn returns the connection the request arrived on, letting handlers
// issue their own calls and notifications back to the peer.
func (c *Context) Conn() *mux.Conn { return c.conn }

// State returns the connection-scoped shared state.
func (c *Context) State() any { return c.state }

// Method returns the method name being dispatched.
func (c *Context) Method() string { return c.method }

// RequestID returns the raw correlation id, or nil for a notification.
func (c *Context) RequestID() json.RawMessage { return c.id }

// NewContext builds a handler context. ServeConn does this for every
// inbound message; tests may construct one directly.
func NewContext(base context.Context, conn *mux.Conn, state any, method string, id json.RawMessage) *Context {
	if base == nil {
		base = context.Background()
	}
	return &Context{Context: base, conn: conn, state: state, method: method, id: id}
}
