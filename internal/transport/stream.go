// ABOUTME: Newline-delimited frame transport over any byte stream
// ABOUTME: Works for net.Conn, stdio pipes, and anything io.ReadWriteCloser

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// Stream frames messages as newline-terminated lines over a byte stream.
// Frames must not contain raw newlines; JSON-RPC frames never do.
type Stream struct {
	rwc       io.ReadWriteCloser
	reader    *bufio.Reader
	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func NewStream(rwc io.ReadWriteCloser) *Stream {
	return &Stream{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
		closed: make(chan struct{}),
	}
}

func (s *Stream) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	if _, err := s.rwc.Write(buf); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// Receive reads the next non-empty line. The underlying read cannot be
// interrupted by ctx; cancellation is delivered by closing the transport,
// which fails the blocked read.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if len(bytes.TrimSpace(line)) > 0 {
				// Final unterminated frame before EOF.
				return bytes.TrimSpace(line), nil
			}
			return nil, s.mapErr(err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.rwc.Close()
	})
	return err
}

func (s *Stream) mapErr(err error) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
