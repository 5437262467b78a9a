// ABOUTME: WebSocket server accepting JSON-RPC connections over HTTP upgrade
// ABOUTME: Binds each connection to the dispatch table with fresh per-conn state

package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/harper/rpcmux/internal/dispatch"
	"github.com/harper/rpcmux/internal/journal"
	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/mux"
	"github.com/harper/rpcmux/internal/rpcerr"
	"github.com/harper/rpcmux/internal/transport"
)

// Options configures a Server.
type Options struct {
	// Table routes inbound methods. Required.
	Table *dispatch.Table
	// Registry resolves peer error codes. Defaults to rpcerr.Default.
	Registry *rpcerr.Registry
	// Journal, when set, records every frame on every connection.
	Journal journal.Recorder
	// InboundBuffer is the per-connection inbound queue depth.
	InboundBuffer int
	// NewState builds the shared state handed to every handler on one
	// connection. Called once per connection; nil means no state.
	NewState func() any
}

// Server upgrades HTTP requests to WebSocket connections and serves each
// through the dispatch table until the peer disconnects.
type Server struct {
	opts Options

	mu     sync.Mutex
	conns  map[string]*mux.Conn
	closed bool
}

func New(opts Options) *Server {
	return &Server{opts: opts, conns: make(map[string]*mux.Conn)}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tr, err := transport.UpgradeWS(w, r)
	if err != nil {
		logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	conn := mux.NewConn(mux.Server, tr, &mux.Options{
		Registry:      s.opts.Registry,
		Journal:       s.opts.Journal,
		InboundBuffer: s.opts.InboundBuffer,
	})

	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	logger.Info("client connected: conn=%s remote=%s", conn.ID(), r.RemoteAddr)

	var state any
	if s.opts.NewState != nil {
		state = s.opts.NewState()
	}
	s.opts.Table.ServeConn(r.Context(), conn, state)

	_ = conn.Close()
	logger.Info("client disconnected: conn=%s", conn.ID())
}

// Shutdown closes every live connection and refuses new ones. Each serve
// loop drains its in-flight handlers before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*mux.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = c.Close()
	}
	return nil
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn *mux.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn.ID()] = conn
	return true
}

func (s *Server) untrack(conn *mux.Conn) {
	s.mu.Lock()
	delete(s.conns, conn.ID())
	s.mu.Unlock()
}
