package protocol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dispatcherrors "github.com/wagiedev/cwmanager/internal/errors"
)

func startController(t *testing.T, opts ...Option) (*Controller, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport, opts...)
	require.NoError(t, ctrl.Start(context.Background()))

	t.Cleanup(ctrl.Stop)

	return ctrl, transport
}

func TestController_MalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantID any
		code   int
	}{
		{name: "invalid json", line: `{"jsonrpc":"2.0",`, wantID: nil, code: CodeParseError},
		{name: "not an object", line: `42`, wantID: nil, code: CodeInvalidRequest},
		{name: "batch", line: `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, wantID: nil, code: CodeInvalidRequest},
		{name: "wrong version", line: `{"jsonrpc":"1.0","id":3,"method":"ping"}`, wantID: 3.0, code: CodeInvalidRequest},
		{name: "missing method", line: `{"jsonrpc":"2.0","id":"x"}`, wantID: "x", code: CodeInvalidRequest},
		{name: "null id", line: `{"jsonrpc":"2.0","id":null,"method":"ping"}`, wantID: nil, code: CodeInvalidRequest},
		{name: "object id", line: `{"jsonrpc":"2.0","id":{},"method":"ping"}`, wantID: nil, code: CodeInvalidRequest},
		{name: "unknown method", line: `{"jsonrpc":"2.0","id":9,"method":"nope"}`, wantID: 9.0, code: CodeMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, transport := startController(t)

			transport.sendLine(tt.line)

			responses := transport.waitForResponses(t, 1)
			require.Len(t, responses, 1)
			require.Equal(t, "2.0", responses[0]["jsonrpc"])
			require.Equal(t, tt.wantID, responses[0]["id"])
			require.Equal(t, tt.code, errorCode(t, responses[0]))
		})
	}
}

func TestController_LoopSurvivesBadInput(t *testing.T) {
	ctrl, transport := startController(t)

	ctrl.RegisterHandler("ping", func(context.Context, *Request) (any, error) {
		return nil, nil
	})

	transport.sendLine(`garbage`)
	transport.sendRequest(1, "ping", nil)

	responses := transport.waitForResponses(t, 2)
	require.Equal(t, CodeParseError, errorCode(t, responses[0]))
	require.InDelta(t, 1, responses[1]["id"], 0)
	require.Equal(t, map[string]any{}, responses[1]["result"])
}

func TestController_HandlerResults(t *testing.T) {
	ctrl, transport := startController(t)

	ctrl.RegisterHandler("echo", func(_ context.Context, req *Request) (any, error) {
		var params struct {
			Text string `json:"text"`
		}

		if err := req.Bind(&params); err != nil {
			return nil, err
		}

		return map[string]any{"text": params.Text}, nil
	})
	ctrl.RegisterHandler("rpc_error", func(context.Context, *Request) (any, error) {
		return nil, NewError(-32002, "Resource not found", map[string]any{"uri": "x://y"})
	})
	ctrl.RegisterHandler("plain_error", func(context.Context, *Request) (any, error) {
		return nil, errors.New("disk on fire")
	})
	ctrl.RegisterHandler("panics", func(context.Context, *Request) (any, error) {
		panic("boom")
	})

	transport.sendRequest(1, "echo", map[string]any{"text": "hi"})
	transport.sendRequest(2, "echo", map[string]any{"text": 5})
	transport.sendRequest(3, "rpc_error", nil)
	transport.sendRequest(4, "plain_error", nil)
	transport.sendRequest(5, "panics", nil)
	transport.sendRequest(6, "echo", nil)

	responses := transport.waitForResponses(t, 6)
	require.Len(t, responses, 6)

	require.Equal(t, map[string]any{"text": "hi"}, responses[0]["result"])

	require.Equal(t, CodeInvalidParams, errorCode(t, responses[1]))

	require.Equal(t, -32002, errorCode(t, responses[2]))
	rpcErr := responses[2]["error"].(map[string]any)
	require.Equal(t, "Resource not found", rpcErr["message"])
	require.Equal(t, map[string]any{"uri": "x://y"}, rpcErr["data"])

	require.Equal(t, CodeInternalError, errorCode(t, responses[3]))
	require.Equal(t, "disk on fire", responses[3]["error"].(map[string]any)["message"])

	require.Equal(t, CodeInternalError, errorCode(t, responses[4]))
	require.Contains(t, responses[4]["error"].(map[string]any)["message"], "boom")

	require.Equal(t, map[string]any{"text": ""}, responses[5]["result"])
}

func TestController_SequentialByDefault(t *testing.T) {
	ctrl, transport := startController(t)

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		order   []string
	)

	ctrl.RegisterHandler("work", func(_ context.Context, req *Request) (any, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		order = append(order, string(req.ID))
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()

		return nil, nil
	})

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		transport.sendRequest(id, "work", nil)
	}

	responses := transport.waitForResponses(t, len(ids))

	for i, id := range ids {
		require.Equal(t, id, responses[i]["id"])
	}

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, []string{`"a"`, `"b"`, `"c"`, `"d"`, `"e"`}, order)
}

func TestController_WorkersRunConcurrently(t *testing.T) {
	ctrl, transport := startController(t, WithWorkers(2))

	arrived := make(chan struct{}, 2)
	release := make(chan struct{})

	ctrl.RegisterHandler("rendezvous", func(context.Context, *Request) (any, error) {
		arrived <- struct{}{}
		<-release

		return "ok", nil
	})

	transport.sendRequest(1, "rendezvous", nil)
	transport.sendRequest(2, "rendezvous", nil)

	for range 2 {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("requests did not run concurrently")
		}
	}

	close(release)
	transport.waitForResponses(t, 2)
}

func TestController_DuplicateInFlightID(t *testing.T) {
	ctrl, transport := startController(t)

	started := make(chan struct{})
	release := make(chan struct{})

	ctrl.RegisterHandler("hold", func(context.Context, *Request) (any, error) {
		close(started)
		<-release

		return "done", nil
	})

	transport.sendRequest("dup", "hold", nil)
	<-started
	transport.sendRequest("dup", "hold", nil)

	responses := transport.waitForResponses(t, 1)
	require.Equal(t, CodeInvalidRequest, errorCode(t, responses[0]))

	close(release)

	responses = transport.waitForResponses(t, 2)
	require.Equal(t, "done", responses[1]["result"])
}

func TestController_Notifications(t *testing.T) {
	ctrl, transport := startController(t)

	got := make(chan string, 1)

	ctrl.RegisterNotificationHandler("notifications/initialized", func(_ context.Context, req *Request) {
		got <- req.Method
	})

	transport.sendLine(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	transport.sendLine(`{"jsonrpc":"2.0","method":"notifications/unknown"}`)
	transport.sendLine(`{"jsonrpc":"2.0","id":"srv-1","result":{}}`)

	select {
	case method := <-got:
		require.Equal(t, "notifications/initialized", method)
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler was not called")
	}

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, transport.getMessages())
}

func TestController_EOFDrainsQueue(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	ctrl.RegisterHandler("slow", func(context.Context, *Request) (any, error) {
		time.Sleep(10 * time.Millisecond)

		return "ok", nil
	})

	require.NoError(t, ctrl.Start(context.Background()))

	for i := range 3 {
		transport.sendRequest(i, "slow", nil)
	}

	close(transport.lineChan)
	close(transport.errChan)

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop after EOF")
	}

	require.NoError(t, ctrl.Wait())
	require.Len(t, transport.getMessages(), 3)

	ctrl.Stop()
}

func TestController_TransportError(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	require.NoError(t, ctrl.Start(context.Background()))

	defer ctrl.Stop()

	transport.errChan <- errors.New("read input: broken pipe")

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop after transport error")
	}

	require.EqualError(t, ctrl.Wait(), "read input: broken pipe")
}

func TestController_OversizedLineIsAnswered(t *testing.T) {
	ctrl, transport := startController(t)

	ctrl.RegisterHandler("ping", func(context.Context, *Request) (any, error) {
		return nil, nil
	})

	transport.errChan <- dispatcherrors.ErrMessageTooLarge

	responses := transport.waitForResponses(t, 1)
	require.Nil(t, responses[0]["id"])
	require.Equal(t, CodeInvalidRequest, errorCode(t, responses[0]))

	transport.sendRequest(1, "ping", nil)

	responses = transport.waitForResponses(t, 2)
	require.InDelta(t, 1, responses[1]["id"], 0)
	require.Equal(t, map[string]any{}, responses[1]["result"])

	select {
	case <-ctrl.Done():
		t.Fatal("controller stopped after oversized line")
	default:
	}
}

func TestController_OversizedLineBeforeClose(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	transport.errChan <- dispatcherrors.ErrMessageTooLarge
	close(transport.lineChan)

	require.NoError(t, ctrl.Start(context.Background()))

	defer ctrl.Stop()

	require.NoError(t, ctrl.Wait())

	responses := transport.responses(t)
	require.Len(t, responses, 1)
	require.Equal(t, CodeInvalidRequest, errorCode(t, responses[0]))
}

func TestController_TransportErrorBeforeClose(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	transport.errChan <- errors.New("line too long")
	close(transport.lineChan)

	require.NoError(t, ctrl.Start(context.Background()))

	defer ctrl.Stop()

	require.EqualError(t, ctrl.Wait(), "line too long")
}

func TestController_StopMultipleCalls(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	require.NoError(t, ctrl.Start(context.Background()))

	ctrl.Stop()
	ctrl.Stop()
	ctrl.Stop()

	select {
	case <-ctrl.Done():
	default:
		t.Fatal("done channel should be closed")
	}

	require.NoError(t, ctrl.FatalError())
}

func TestController_StopBeforeStart(t *testing.T) {
	ctrl := NewController(nil, newMockTransport())

	ctrl.Stop()

	select {
	case <-ctrl.Done():
	default:
		t.Fatal("done channel should be closed")
	}

	// Start after Stop is a no-op.
	require.NoError(t, ctrl.Start(context.Background()))
}

func TestController_ParentContextCancel(t *testing.T) {
	transport := newMockTransport()
	ctrl := NewController(slog.Default(), transport)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ctrl.Start(ctx))

	cancel()

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop after context cancellation")
	}

	ctrl.Stop()
}

func TestRequest_Bind(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	require.NoError(t, (&Request{}).Bind(&v))
	require.NoError(t, (&Request{Params: []byte("null")}).Bind(&v))
	require.NoError(t, (&Request{Params: []byte(`{"name":"x"}`)}).Bind(&v))
	require.Equal(t, "x", v.Name)

	err := (&Request{Method: "m", Params: []byte(`[1]`)}).Bind(&v)

	rpcErr, ok := errors.AsType[*Error](err)
	require.True(t, ok)
	require.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestIDKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: `1`, want: "n:1", ok: true},
		{raw: `1.0`, want: "n:1", ok: true},
		{raw: `1e0`, want: "n:1", ok: true},
		{raw: `10E2`, want: "n:1000", ok: true},
		{raw: ` 7 `, want: "n:7", ok: true},
		{raw: `-0`, want: "n:0", ok: true},
		{raw: `-0.0`, want: "n:0", ok: true},
		{raw: `1.5`, want: "n:1.5", ok: true},
		{raw: `9223372036854775807`, want: "n:9223372036854775807", ok: true},
		{raw: `"1"`, want: "s:1", ok: true},
		{raw: `"1.0"`, want: "s:1.0", ok: true},
		{raw: `"abc"`, want: "s:abc", ok: true},
		{raw: `null`, ok: false},
		{raw: `{}`, ok: false},
		{raw: `true`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, ok := idKey([]byte(tt.raw))
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, key)
		})
	}
}
