// ABOUTME: Tests for SQLite frame journaling
// ABOUTME: Validates classification, ordering, and per-connection queries

package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLite {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndQuery(t *testing.T) {
	j := openTestJournal(t)

	j.Record("conn-a", DirectionOutbound, []byte(`{"jsonrpc":"2.0","method":"echo","params":[1],"id":1}`))
	j.Record("conn-a", DirectionInbound, []byte(`{"jsonrpc":"2.0","result":[1],"id":1}`))
	j.Record("conn-b", DirectionOutbound, []byte(`{"jsonrpc":"2.0","method":"heartbeat"}`))

	frames, err := j.Frames("conn-a")
	require.NoError(t, err)
	require.Len(t, frames, 2)

	require.Equal(t, DirectionOutbound, frames[0].Direction)
	require.Equal(t, "request", frames[0].MessageType)
	require.Equal(t, "echo", frames[0].Method)
	require.Equal(t, "1", frames[0].RPCID)

	require.Equal(t, DirectionInbound, frames[1].Direction)
	require.Equal(t, "response", frames[1].MessageType)

	frames, err = j.Frames("conn-b")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "notification", frames[0].MessageType)
	require.Equal(t, "heartbeat", frames[0].Method)
}

func TestRecordToleratesGarbage(t *testing.T) {
	j := openTestJournal(t)

	j.Record("conn-a", DirectionInbound, []byte("not json at all"))

	frames, err := j.Frames("conn-a")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Empty(t, frames[0].MessageType)
	require.Equal(t, "not json at all", frames[0].Raw)
}

func TestErrorResponseClassification(t *testing.T) {
	j := openTestJournal(t)

	j.Record("conn-a", DirectionInbound, []byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":3}`))

	frames, err := j.Frames("conn-a")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "error_response", frames[0].MessageType)
	require.Equal(t, "3", frames[0].RPCID)
}
