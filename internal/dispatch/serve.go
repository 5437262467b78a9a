// ABOUTME: Server loop draining a connection's inbound stream through the table
// ABOUTME: Binds one shared state instance to the connection for its lifetime

package dispatch

import (
	"context"
	"sync"

	"github.com/harper/rpcmux/internal/jsonrpc"
	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/mux"
)

// ServeConn drains the connection's inbound stream, dispatching each
// request in its own goroutine and sending the outcome back. state is
// bound as the connection's shared context for the duration of the loop
// and is released on every exit path; it is never visible to another
// connection. ServeConn returns when the connection closes.
func (t *Table) ServeConn(ctx context.Context, conn *mux.Conn, state any) {
	var inflight sync.WaitGroup

	for req := range conn.Inbound() {
		inflight.Add(1)
		go func(req *jsonrpc.Request) {
			defer inflight.Done()

			hctx := NewContext(ctx, conn, state, req.Method, req.ID)
			out := t.Dispatch(hctx, req)
			if out == nil {
				return
			}
			var err error
			if out.Err != nil {
				err = conn.ReplyError(ctx, req, out.Err)
			} else {
				err = conn.ReplyResult(ctx, req, out.Result)
			}
			if err != nil {
				logger.Warn("failed to send reply for %q: %v", req.Method, err)
			}
		}(req)
	}

	inflight.Wait()
	logger.Debug("serve loop for conn %s finished", conn.ID())
}
