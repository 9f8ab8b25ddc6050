// Package cwmanager is a Model Context Protocol server built around a small
// dispatch core.
//
// Tools are registered under exact names and resources under URI templates
// such as "greeting://{name}". Every request names a kind and an identifier;
// the core resolves the registration, validates and coerces the arguments
// against the declared parameters, invokes the handler and returns an
// envelope:
//
//	{"status": "ok", "payload": 5}
//	{"status": "error", "error": {"kind": "ArgumentError", "message": "..."}}
//
// Handler failures and panics never escape the core; they become
// HandlerError envelopes and the server keeps serving.
//
// # Basic Usage
//
// Serve the built-in tools over stdin/stdout:
//
//	srv, err := cwmanager.New(cwmanager.WithLogger(cwmanager.NewLogger(slog.LevelInfo, "text", os.Stderr)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Custom Registrations
//
// Typed Go functions can be registered directly; their arguments are bound
// in declaration order:
//
//	srv, err := cwmanager.New(
//	    cwmanager.WithRegistration(cwmanager.NewTool("sum", "Add two numbers",
//	        cwmanager.Params{
//	            cwmanager.Required("a", cwmanager.Number),
//	            cwmanager.Required("b", cwmanager.Number),
//	        },
//	        cwmanager.Func(func(a, b float64) float64 { return a + b }),
//	    )),
//	    cwmanager.WithRegistration(cwmanager.NewResource("weather://{city}", "Current weather",
//	        cwmanager.Params{cwmanager.Required("city", cwmanager.String)},
//	        cwmanager.Func(func(ctx context.Context, city string) (string, error) { ... }),
//	    )),
//	)
//
// Registration errors (a duplicate name, overlapping templates, parameters
// that disagree with the handler) are returned from New and should abort
// startup.
//
// # Direct Dispatch
//
// The envelope interface is available without a transport:
//
//	resp := srv.Dispatch(ctx, &cwmanager.Request{Kind: "tool", Identifier: "sum",
//	    Arguments: map[string]any{"a": 2, "b": 3}})
//
// # Error Handling
//
// Error envelopes carry one of the Kind constants. Go callers can inspect
// the underlying error with errors.AsType:
//
//	if argErr, ok := errors.AsType[*cwmanager.ArgumentError](resp.Err()); ok {
//	    fmt.Println("bad parameter:", argErr.Param)
//	}
//
// # Telemetry
//
// Every dispatch is reported to the OpenTelemetry meter and tracer
// providers installed with otel.SetMeterProvider and otel.SetTracerProvider.
// Additional observers can be attached with WithObserver.
package cwmanager
