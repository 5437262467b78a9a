// ABOUTME: In-process channel-backed transport for tests and same-process peers
// ABOUTME: Pipe returns two connected ends sharing a pair of frame channels

package transport

import (
	"context"
	"sync"
)

const pipeBuffer = 64

// Memory is one end of an in-process pipe.
type Memory struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	peer      *Memory
	closeOnce sync.Once
}

// Pipe creates two connected in-memory transports. Frames sent on one end
// arrive on the other in order. Closing either end fails pending and
// subsequent operations on both ends with ErrClosed, after buffered frames
// have been drained on the receive side.
func Pipe() (*Memory, *Memory) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	a := &Memory{in: ba, out: ab, closed: make(chan struct{})}
	b := &Memory{in: ab, out: ba, closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (m *Memory) Send(ctx context.Context, frame []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	case <-m.peer.closed:
		return ErrClosed
	default:
	}
	select {
	case m.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.closed:
		return ErrClosed
	case <-m.peer.closed:
		return ErrClosed
	}
}

func (m *Memory) Receive(ctx context.Context) ([]byte, error) {
	// Drain buffered frames before reporting a closed pipe.
	select {
	case frame := <-m.in:
		return frame, nil
	default:
	}
	select {
	case frame := <-m.in:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, ErrClosed
	case <-m.peer.closed:
		return nil, ErrClosed
	}
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	return nil
}
