package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/cwmanager/internal/dispatch"
	"github.com/wagiedev/cwmanager/internal/errors"
	"github.com/wagiedev/cwmanager/internal/registry"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()

	reg := registry.New(nil)
	require.NoError(t, Register(reg, "cwmanager"))
	reg.Freeze()

	return dispatch.New(reg, nil)
}

func TestBuiltinTools(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		want float64
	}{
		{tool: "add", args: map[string]any{"a": 2, "b": 3}, want: 5},
		{tool: "add", args: map[string]any{"a": 2.5, "b": "4"}, want: 6.5},
		{tool: "multiply", args: map[string]any{"a": 6, "b": 7}, want: 42},
		{tool: "multiply", args: map[string]any{"a": -1.5, "b": 2}, want: -3},
	}

	d := newDispatcher(t)

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			resp := d.Dispatch(context.Background(), &dispatch.Request{
				Kind:       "tool",
				Identifier: tt.tool,
				Arguments:  tt.args,
			})

			require.True(t, resp.OK(), "unexpected error: %v", resp.Err())
			require.InDelta(t, tt.want, resp.Payload, 1e-9)
		})
	}
}

func TestBuiltinTools_MissingOperand(t *testing.T) {
	d := newDispatcher(t)

	resp := d.Dispatch(context.Background(), &dispatch.Request{
		Kind:       "tool",
		Identifier: "multiply",
		Arguments:  map[string]any{"a": 1},
	})

	require.False(t, resp.OK())
	require.Equal(t, errors.KindArgument, resp.Error.Kind)
}

func TestBuiltinResources(t *testing.T) {
	d := newDispatcher(t)

	resp := d.Dispatch(context.Background(), &dispatch.Request{Kind: "resource", Identifier: "greeting://Alice"})
	require.True(t, resp.OK())
	require.Equal(t, "Hello, Alice!", resp.Payload)

	resp = d.Dispatch(context.Background(), &dispatch.Request{Kind: "resource", Identifier: "info://server"})
	require.True(t, resp.OK())
	require.Equal(t, "This is a sample MCP server for cwmanager", resp.Payload)
}

func TestRegister_Twice(t *testing.T) {
	reg := registry.New(nil)
	require.NoError(t, Register(reg, "a"))

	err := Register(reg, "b")
	require.Error(t, err)
	require.Equal(t, errors.KindDuplicateRegistration, errors.KindOf(err))
}
