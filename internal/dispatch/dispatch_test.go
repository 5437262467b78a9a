// ABOUTME: Tests for handler registration, routing, and outcome conversion
// ABOUTME: Covers conventions, shape mismatches, panics, and typed errors

package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/rpcmux/internal/jsonrpc"
	"github.com/harper/rpcmux/internal/rpcerr"
)

func testCtx(state any) *Context {
	return NewContext(context.Background(), nil, state, "test", nil)
}

func request(method, params string, id int64) *jsonrpc.Request {
	req := &jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: method, ID: jsonrpc.NumberID(id)}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func notification(method, params string) *jsonrpc.Request {
	req := &jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return req
}

func TestRegisterDuplicateFails(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("echo", func(ctx *Context, args []json.RawMessage) (any, error) {
		return args, nil
	}))
	err := table.Register("echo", func(ctx *Context) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRejectsUnsupportedSignature(t *testing.T) {
	table := New()
	err := table.Register("bad", func(a int, b string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported handler signature")

	err = table.Register("also-bad", 42)
	require.Error(t, err)
}

func TestDispatchMethodNotFound(t *testing.T) {
	table := New()
	called := false
	require.NoError(t, table.Register("known", func(ctx *Context) (any, error) {
		called = true
		return nil, nil
	}))

	out := table.Dispatch(testCtx(nil), request("unknown", "", 1))
	require.NotNil(t, out)
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeMethodNotFound, out.Err.Code)
	assert.False(t, called, "no handler may run for an unknown method")
}

func TestDispatchUnknownNotificationIsDropped(t *testing.T) {
	table := New()
	out := table.Dispatch(testCtx(nil), notification("unknown", ""))
	assert.Nil(t, out)
}

func TestDispatchPositionalConvention(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("sum", func(ctx *Context, args []json.RawMessage) (any, error) {
		total := 0
		for _, raw := range args {
			var n int
			if err := json.Unmarshal(raw, &n); err != nil {
				return nil, rpcerr.New(rpcerr.CodeInvalidParams, "not a number")
			}
			total += n
		}
		return total, nil
	}))

	out := table.Dispatch(testCtx(nil), request("sum", `[1,2,3]`, 1))
	require.NotNil(t, out)
	require.Nil(t, out.Err)
	assert.Equal(t, 6, out.Result)

	// An object against a positional handler is an invalid-params error.
	out = table.Dispatch(testCtx(nil), request("sum", `{"a":1}`, 2))
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeInvalidParams, out.Err.Code)
}

func TestDispatchNamedConvention(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("greet", func(ctx *Context, kwargs map[string]json.RawMessage) (any, error) {
		var params struct {
			Name string `json:"name"`
		}
		if err := DecodeParams(kwargs, &params); err != nil {
			return nil, err
		}
		return "hello " + params.Name, nil
	}))

	out := table.Dispatch(testCtx(nil), request("greet", `{"name":"ada"}`, 1))
	require.Nil(t, out.Err)
	assert.Equal(t, "hello ada", out.Result)

	// An array against a named handler is an invalid-params error.
	out = table.Dispatch(testCtx(nil), request("greet", `["ada"]`, 2))
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeInvalidParams, out.Err.Code)
}

func TestDispatchNoParamsConvention(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("time", func(ctx *Context) (any, error) {
		return "now", nil
	}))

	for _, params := range []string{"", `[]`, `{}`} {
		out := table.Dispatch(testCtx(nil), request("time", params, 1))
		require.Nil(t, out.Err, "params %q", params)
		assert.Equal(t, "now", out.Result)
	}

	out := table.Dispatch(testCtx(nil), request("time", `[1]`, 2))
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeInvalidParams, out.Err.Code)
}

func TestDispatchHandlerPanicBecomesInternalError(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("explode", func(ctx *Context) (any, error) {
		panic("kaboom")
	}))

	out := table.Dispatch(testCtx(nil), request("explode", "", 1))
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeInternalError, out.Err.Code)
	assert.NotContains(t, out.Err.Message, "kaboom", "fault detail must not cross the wire")
}

func TestDispatchPlainErrorBecomesInternalError(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("fragile", func(ctx *Context) (any, error) {
		return nil, assert.AnError
	}))

	out := table.Dispatch(testCtx(nil), request("fragile", "", 1))
	require.NotNil(t, out.Err)
	assert.Equal(t, rpcerr.CodeInternalError, out.Err.Code)
	assert.NotContains(t, out.Err.Message, assert.AnError.Error())
}

func TestDispatchRPCErrorPassesThrough(t *testing.T) {
	table := New()
	require.NoError(t, table.Register("forbidden", func(ctx *Context) (any, error) {
		appErr, err := rpcerr.NewWithData(1000, "Not authorized", map[string]string{"user": "mallory"})
		require.NoError(t, err)
		return nil, appErr
	}))

	out := table.Dispatch(testCtx(nil), request("forbidden", "", 1))
	require.NotNil(t, out.Err)
	assert.Equal(t, 1000, out.Err.Code)
	assert.Equal(t, "Not authorized", out.Err.Message)
	assert.JSONEq(t, `{"user":"mallory"}`, string(out.Err.Data))
}

func TestSharedStateAcrossInvocations(t *testing.T) {
	type counterState struct {
		Calls int
	}

	table := New()
	require.NoError(t, table.Register("bump", func(ctx *Context) (any, error) {
		st := ctx.State().(*counterState)
		st.Calls++
		return st.Calls, nil
	}))

	state := &counterState{}
	for want := 1; want <= 3; want++ {
		out := table.Dispatch(testCtx(state), request("bump", "", int64(want)))
		require.Nil(t, out.Err)
		assert.Equal(t, want, out.Result)
	}
	assert.Equal(t, 3, state.Calls)
}

func TestNotificationOutcomeIsNil(t *testing.T) {
	table := New()
	ran := make(chan struct{}, 1)
	require.NoError(t, table.Register("log", func(ctx *Context, kwargs map[string]json.RawMessage) (any, error) {
		ran <- struct{}{}
		return nil, nil
	}))

	out := table.Dispatch(testCtx(nil), notification("log", `{"line":"x"}`))
	assert.Nil(t, out)
	<-ran
}

func TestDecodeParamsWeakTyping(t *testing.T) {
	var params struct {
		Num   int    `json:"num"`
		Denom int    `json:"denom"`
		Label string `json:"label"`
	}
	kwargs := map[string]json.RawMessage{
		"num":   json.RawMessage(`10`),
		"denom": json.RawMessage(`2`),
		"label": json.RawMessage(`"division"`),
	}
	require.NoError(t, DecodeParams(kwargs, &params))
	assert.Equal(t, 10, params.Num)
	assert.Equal(t, 2, params.Denom)
	assert.Equal(t, "division", params.Label)
}
