// ABOUTME: Connection multiplexer correlating JSON-RPC requests with responses
// ABOUTME: Owns the transport, the pending-call table, and the background pump

package mux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/harper/rpcmux/internal/journal"
	"github.com/harper/rpcmux/internal/jsonrpc"
	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/rpcerr"
	"github.com/harper/rpcmux/internal/transport"
)

// Role identifies which side of the connection this peer plays. The
// multiplexer itself is symmetric; the role feeds logging and journaling.
type Role int

const (
	Client Role = iota
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

var (
	// ErrConnClosed fails local operations once the connection is closing
	// or closed. It never crosses the wire.
	ErrConnClosed = errors.New("mux: connection closed")
	// ErrNotRequest is returned when replying to a notification, which has
	// no id to correlate a response to.
	ErrNotRequest = errors.New("mux: cannot reply to a notification")
)

type connState int

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

// Options tunes optional connection behavior.
type Options struct {
	// Registry resolves peer error codes to typed errors. Defaults to
	// rpcerr.Default.
	Registry *rpcerr.Registry
	// Journal, when set, records every frame sent and received.
	Journal journal.Recorder
	// InboundBuffer is the capacity of the inbound message channel.
	InboundBuffer int
}

// outcome is the single fulfillment of a pending call.
type outcome struct {
	result json.RawMessage
	errObj *jsonrpc.ErrorObject
	err    error
}

type pendingCall struct {
	key string
	// Buffered so fulfillment never blocks the pump; at most one outcome
	// is ever delivered per call.
	done chan outcome
}

// Conn multiplexes concurrent request/response exchanges and an inbound
// message stream over one transport.
type Conn struct {
	id       string
	role     Role
	tr       transport.Transport
	registry *rpcerr.Registry
	rec      journal.Recorder

	// writeMu serializes frame writes so bytes are never interleaved.
	writeMu sync.Mutex

	mu      sync.Mutex
	state   connState
	pending map[string]*pendingCall
	seq     int64

	inbound   chan *jsonrpc.Request
	closedCh  chan struct{}
	closeOnce sync.Once
	pumpDone  chan struct{}
}

// NewConn wraps a transport and starts the background pump. The caller
// must eventually call Close.
func NewConn(role Role, tr transport.Transport, opts *Options) *Conn {
	if opts == nil {
		opts = &Options{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = rpcerr.Default
	}
	buffer := opts.InboundBuffer
	if buffer <= 0 {
		buffer = 16
	}

	c := &Conn{
		id:       uuid.NewString(),
		role:     role,
		tr:       tr,
		registry: registry,
		rec:      opts.Journal,
		pending:  make(map[string]*pendingCall),
		inbound:  make(chan *jsonrpc.Request, buffer),
		closedCh: make(chan struct{}),
		pumpDone: make(chan struct{}),
	}

	go c.pump()
	logger.Debug("[%s %s] connection open", c.role, c.shortID())
	return c
}

// ID returns the connection's local identity, used in logs and the journal.
func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() Role { return c.role }

func (c *Conn) shortID() string { return c.id[:8] }

// Call sends a request and blocks until the matching response arrives, the
// context is done, or the connection closes. A peer-reported ErrorObject
// is returned as a *rpcerr.Error resolved through the registry.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	call, req, err := c.newPending(method, rawParams)
	if err != nil {
		return nil, err
	}

	frame, err := jsonrpc.Encode(req)
	if err != nil {
		c.dropPending(call.key)
		return nil, err
	}
	if err := c.write(ctx, frame); err != nil {
		c.dropPending(call.key)
		return nil, err
	}

	select {
	case out := <-call.done:
		if out.err != nil {
			return nil, out.err
		}
		if out.errObj != nil {
			return nil, c.registry.FromWire(out.errObj)
		}
		return out.result, nil
	case <-ctx.Done():
		// The caller abandons the wait but the pending record stays until
		// the response arrives or the connection closes; the outcome is
		// delivered to the buffered channel and discarded with the call.
		return nil, ctx.Err()
	}
}

// CallResult issues Call and decodes the raw result into resultPtr.
func (c *Conn) CallResult(ctx context.Context, method string, params any, resultPtr any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	return decodeResult(raw, resultPtr)
}

// Notify sends a notification. It returns once the frame is written and
// never waits for a peer reply or creates a pending call.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}
	if !c.isOpen() {
		return ErrConnClosed
	}
	frame, err := jsonrpc.Encode(&jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// Inbound returns the stream of requests and notifications received from
// the peer, in wire order. The channel closes when the connection reaches
// its terminal state. Each request on it must eventually be answered with
// ReplyResult or ReplyError.
func (c *Conn) Inbound() <-chan *jsonrpc.Request {
	return c.inbound
}

// ReplyResult sends a successful response correlated to an inbound request.
func (c *Conn) ReplyResult(ctx context.Context, req *jsonrpc.Request, value any) error {
	if req.IsNotification() {
		return ErrNotRequest
	}
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	frame, err := jsonrpc.Encode(&jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		Result:  raw,
		ID:      req.ID,
	})
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// ReplyError sends an error response correlated to an inbound request.
func (c *Conn) ReplyError(ctx context.Context, req *jsonrpc.Request, errObj *jsonrpc.ErrorObject) error {
	if req.IsNotification() {
		return ErrNotRequest
	}
	frame, err := jsonrpc.Encode(&jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		Error:   errObj,
		ID:      req.ID,
	})
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// Close transitions the connection to its terminal state: outstanding
// calls fail with ErrConnClosed, the transport is closed, and the pump is
// waited out. Closing an already-closed connection is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == stateOpen {
		c.state = stateClosing
		logger.Debug("[%s %s] closing", c.role, c.shortID())
	}
	c.mu.Unlock()

	c.signalClose()
	if err := c.tr.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
		logger.Warn("[%s %s] transport close: %v", c.role, c.shortID(), err)
	}
	<-c.pumpDone
	return nil
}

func (c *Conn) signalClose() {
	c.closeOnce.Do(func() {
		close(c.closedCh)
	})
}

func (c *Conn) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// newPending allocates a fresh correlation id, registers the call, and
// builds the request frame. Ids are monotonic, so one can never collide
// with an outstanding request on this connection.
func (c *Conn) newPending(method string, params json.RawMessage) (*pendingCall, *jsonrpc.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateOpen {
		return nil, nil, ErrConnClosed
	}
	c.seq++
	id := jsonrpc.NumberID(c.seq)
	call := &pendingCall{key: jsonrpc.IDKey(id), done: make(chan outcome, 1)}
	c.pending[call.key] = call
	req := &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
	return call, req, nil
}

func (c *Conn) dropPending(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

// write serializes one frame onto the transport. Exactly one writer at a
// time touches the transport's send side.
func (c *Conn) write(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.rec != nil {
		c.rec.Record(c.id, journal.DirectionOutbound, frame)
	}
	if err := c.tr.Send(ctx, frame); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return ErrConnClosed
		}
		return err
	}
	return nil
}

// pump is the single reader: it decodes each inbound frame and routes
// responses to pending calls and requests to the inbound channel. It runs
// from NewConn until the transport dies or Close is called.
func (c *Conn) pump() {
	defer c.teardown()

	for {
		frame, err := c.tr.Receive(context.Background())
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				logger.Debug("[%s %s] pump exiting: transport closed", c.role, c.shortID())
			} else {
				logger.Warn("[%s %s] pump exiting: receive failed: %v", c.role, c.shortID(), err)
			}
			return
		}
		if c.rec != nil {
			c.rec.Record(c.id, journal.DirectionInbound, frame)
		}

		msg, err := jsonrpc.Decode(frame)
		if err != nil {
			// Framing is the transport's problem; an undecodable payload
			// means the stream itself is corrupt and unrecoverable.
			logger.Error("[%s %s] undecodable frame, shutting down: %v", c.role, c.shortID(), err)
			return
		}

		switch m := msg.(type) {
		case *jsonrpc.Response:
			c.fulfill(m)
		case *jsonrpc.Request:
			select {
			case c.inbound <- m:
			case <-c.closedCh:
				return
			}
		}
	}
}

// fulfill resolves a response against the pending table. A response with
// no matching id is a protocol anomaly: logged and discarded, not fatal.
func (c *Conn) fulfill(resp *jsonrpc.Response) {
	key := jsonrpc.IDKey(resp.ID)
	c.mu.Lock()
	call, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		logger.Warn("[%s %s] no in-flight request matches response id %s", c.role, c.shortID(), key)
		return
	}
	call.done <- outcome{result: resp.Result, errObj: resp.Error}
}

// teardown runs exactly once, on pump exit. It enters the terminal state,
// cancels every outstanding call, and closes the inbound stream.
func (c *Conn) teardown() {
	c.signalClose()
	_ = c.tr.Close()

	c.mu.Lock()
	c.state = stateClosed
	cancelled := make([]*pendingCall, 0, len(c.pending))
	for _, call := range c.pending {
		cancelled = append(cancelled, call)
	}
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	for _, call := range cancelled {
		call.done <- outcome{err: ErrConnClosed}
	}
	close(c.inbound)
	close(c.pumpDone)
	logger.Debug("[%s %s] connection closed (%d calls cancelled)", c.role, c.shortID(), len(cancelled))
}

// marshalParams validates and serializes call parameters. JSON-RPC only
// permits an array, an object, or no params at all.
func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	var raw json.RawMessage
	switch p := params.(type) {
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("mux: marshal params: %w", err)
		}
		raw = data
	}
	switch jsonrpc.ShapeOf(raw) {
	case jsonrpc.ShapeNone, jsonrpc.ShapeArray, jsonrpc.ShapeObject:
		return raw, nil
	default:
		return nil, fmt.Errorf("mux: params must be an array, an object, or nil")
	}
}

func marshalValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("mux: marshal result: %w", err)
	}
	return data, nil
}
