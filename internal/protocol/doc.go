// Package protocol implements the JSON-RPC 2.0 dispatch loop.
//
// The Controller reads one message per line from a Transport, answers
// malformed input with the standard error codes, and queues every request
// to a fixed worker pool. With the default single worker each request is
// handled to completion before the next one starts. A client may abandon a
// queued or running request with a notifications/cancelled message; the
// request's context is cancelled and it is answered with code -32800.
//
// Every request receives exactly one response. Handler errors and panics are
// converted to error responses and never stop the loop.
//
// Example usage:
//
//	transport := stdio.New(log, os.Stdin, os.Stdout)
//
//	controller := protocol.NewController(log, transport)
//	controller.RegisterHandler("ping", func(ctx context.Context, req *protocol.Request) (any, error) {
//	    return struct{}{}, nil
//	})
//	controller.Start(ctx)
//
//	err := controller.Wait()
package protocol
