// ABOUTME: Tests for the WebSocket server and per-connection state isolation
// ABOUTME: Runs real upgrade/dial cycles against an httptest server

package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/rpcmux/internal/dispatch"
	"github.com/harper/rpcmux/internal/mux"
	"github.com/harper/rpcmux/internal/transport"
)

type counter struct {
	calls int
}

func startServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	srv := New(opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *mux.Conn {
	t.Helper()
	tr, err := transport.DialWS(context.Background(), url)
	require.NoError(t, err)
	conn := mux.NewConn(mux.Client, tr, nil)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServerRoundTrip(t *testing.T) {
	table := dispatch.New()
	table.MustRegister("bump", func(ctx *dispatch.Context) (any, error) {
		st := ctx.State().(*counter)
		st.calls++
		return st.calls, nil
	})

	_, url := startServer(t, Options{
		Table:    table,
		NewState: func() any { return &counter{} },
	})

	conn := dial(t, url)
	ctx := context.Background()

	var got int
	require.NoError(t, conn.CallResult(ctx, "bump", nil, &got))
	assert.Equal(t, 1, got)
	require.NoError(t, conn.CallResult(ctx, "bump", nil, &got))
	assert.Equal(t, 2, got)
}

func TestServerStateIsolatedPerConnection(t *testing.T) {
	table := dispatch.New()
	table.MustRegister("bump", func(ctx *dispatch.Context) (any, error) {
		st := ctx.State().(*counter)
		st.calls++
		return st.calls, nil
	})

	_, url := startServer(t, Options{
		Table:    table,
		NewState: func() any { return &counter{} },
	})

	connA := dial(t, url)
	connB := dial(t, url)
	ctx := context.Background()

	var got int
	require.NoError(t, connA.CallResult(ctx, "bump", nil, &got))
	require.NoError(t, connA.CallResult(ctx, "bump", nil, &got))
	assert.Equal(t, 2, got)

	// A fresh connection starts from a fresh state.
	require.NoError(t, connB.CallResult(ctx, "bump", nil, &got))
	assert.Equal(t, 1, got)
}

func TestServerShutdownClosesConnections(t *testing.T) {
	table := dispatch.New()
	table.MustRegister("ping", func(ctx *dispatch.Context) (any, error) {
		return "pong", nil
	})

	srv, url := startServer(t, Options{Table: table})
	conn := dial(t, url)
	ctx := context.Background()

	var pong string
	require.NoError(t, conn.CallResult(ctx, "ping", nil, &pong))

	require.Eventually(t, func() bool { return srv.ConnCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Shutdown(ctx))

	require.Eventually(t, func() bool {
		_, err := conn.Call(ctx, "ping", nil)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond, "calls must fail after server shutdown")

	require.Eventually(t, func() bool { return srv.ConnCount() == 0 },
		time.Second, 10*time.Millisecond)
}
