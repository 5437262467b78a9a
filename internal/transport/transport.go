// ABOUTME: Transport abstraction for framed byte exchange between peers
// ABOUTME: Defines the Send/Receive/Close contract shared by all transports

package transport

import (
	"context"
	"errors"
)

// ErrClosed signals that the transport can no longer send or receive
// because this side closed it or the peer disconnected.
var ErrClosed = errors.New("transport: closed")

// Transport carries whole frames between two peers. Receive blocks until a
// full frame is available and fails with ErrClosed once the peer is gone.
// Implementations must allow Send and Receive from different goroutines,
// and Close must be idempotent.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
