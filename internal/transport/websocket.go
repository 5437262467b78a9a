// ABOUTME: WebSocket transport for bidirectional JSON-RPC frames
// ABOUTME: Wraps gorilla/websocket connections from either dial or upgrade

package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Add proper origin checking
	},
}

// WS carries one frame per WebSocket text message.
type WS struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewWS wraps an established WebSocket connection.
func NewWS(conn *websocket.Conn) *WS {
	return &WS{conn: conn, closed: make(chan struct{})}
}

// DialWS connects to a WebSocket endpoint and returns it as a transport.
func DialWS(ctx context.Context, url string) (*WS, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return NewWS(conn), nil
}

// UpgradeWS upgrades an inbound HTTP request to a WebSocket transport.
func UpgradeWS(w http.ResponseWriter, r *http.Request) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWS(conn), nil
}

func (t *WS) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return ErrClosed
	}
	return nil
}

// Receive reads the next text message. Cancellation is delivered by
// closing the transport, which fails the blocked read.
func (t *WS) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			// Any read failure means the connection is unusable.
			return nil, ErrClosed
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (t *WS) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		// The close frame is best effort; peers treat a bare TCP close the same.
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
