package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/cwmanager/internal/errors"
)

const (
	// DefaultWorkers handles one request at a time, in arrival order.
	DefaultWorkers = 1
	// DefaultQueueSize is the number of requests buffered ahead of the workers.
	DefaultQueueSize = 64

	// MethodCancelled is the notification a client sends to abandon a request.
	MethodCancelled = "notifications/cancelled"
)

// Transport defines the minimal interface needed by the dispatch loop.
//
// This interface is satisfied by stdio.Transport but allows for testing
// with mock transports. errors.ErrMessageTooLarge on the error channel
// reports a skipped line; any other error stops the controller.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// Controller runs the JSON-RPC dispatch loop over a Transport.
//
// The Controller handles:
//   - Decoding inbound lines and answering malformed ones
//   - Queueing requests FIFO to a fixed pool of workers
//   - Routing requests and notifications to registered handlers
//   - Cancelling in-flight requests on notifications/cancelled
//   - Sending exactly one response per request
//
// The Controller must be started with Start and stops on its own once the
// transport reaches EOF and every queued request has been answered.
type Controller struct {
	log       *slog.Logger
	transport Transport
	workers   int
	queueSize int

	// In-flight request tracking for cancellation support
	inFlightMu sync.Mutex
	inFlight   map[string]*inFlightOperation

	// Handler registry
	handlersMu    sync.RWMutex
	handlers      map[string]RequestHandler
	notifications map[string]NotificationHandler

	queue chan *inFlightOperation

	// Fatal error handling
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// inFlightOperation tracks a request from enqueue until its response is sent.
type inFlightOperation struct {
	key      string
	req      *Request
	ctx      context.Context
	cancel   context.CancelFunc
	enqueued time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithWorkers sets how many requests may run concurrently.
// Values below one are ignored.
func WithWorkers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets how many requests may wait for a worker.
// Values below zero are ignored.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.queueSize = n
		}
	}
}

// NewController creates a new dispatch loop controller.
func NewController(log *slog.Logger, transport Transport, opts ...Option) *Controller {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		log:           log.With("component", "protocol"),
		transport:     transport,
		workers:       DefaultWorkers,
		queueSize:     DefaultQueueSize,
		inFlight:      make(map[string]*inFlightOperation, 10),
		handlers:      make(map[string]RequestHandler, 10),
		notifications: make(map[string]NotificationHandler, 4),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterHandler registers the handler for a request method.
// Registering the same method twice replaces the previous handler.
func (c *Controller) RegisterHandler(method string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering request handler", "method", method)
	c.handlers[method] = handler
}

// RegisterNotificationHandler registers the handler for a notification method.
func (c *Controller) RegisterNotificationHandler(method string, handler NotificationHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering notification handler", "method", method)
	c.notifications[method] = handler
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores the first transport failure.
func (c *Controller) setFatalError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// FatalError returns the transport error that stopped the loop, if any.
// A clean EOF leaves it nil.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading from the transport and dispatching requests.
//
// It spawns the read loop and the worker pool. Cancelling ctx behaves like
// Stop. Calling Start more than once has no effect.
func (c *Controller) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.log.Debug("Starting protocol controller", "workers", c.workers, "queue_size", c.queueSize)

		c.ctx, c.cancel = context.WithCancel(ctx)
		c.queue = make(chan *inFlightOperation, c.queueSize)

		lines, errs := c.transport.ReadMessages(c.ctx)

		var workers errgroup.Group
		for range c.workers {
			workers.Go(func() error {
				c.worker()

				return nil
			})
		}

		c.wg.Go(func() {
			c.readLoop(lines, errs)
		})

		c.wg.Go(func() {
			_ = workers.Wait()

			c.closeDone()
			c.log.Info("Protocol controller stopped")
		})

		c.log.Info("Protocol controller started")
	})

	return nil
}

// Stop cancels all in-flight requests and waits for the loop to finish.
//
// Cancelled requests are still answered. It's safe to call Stop multiple
// times, and before Start.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.startOnce.Do(func() {})

	if c.cancel != nil {
		c.cancel()
	}

	c.CancelAllInFlight()
	c.wg.Wait()
	c.closeDone()
}

// Wait blocks until the controller stops and returns FatalError.
func (c *Controller) Wait() error {
	<-c.done

	return c.FatalError()
}

// readLoop decodes inbound lines until the transport closes or the
// controller is stopped, then closes the queue so workers can drain it.
func (c *Controller) readLoop(lines <-chan []byte, errs <-chan error) {
	defer close(c.queue)
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Input closed")
				c.drainTransportError(errs)

				return
			}

			c.handleLine(line)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if c.handleTransportError(err) {
				return
			}

		case <-c.ctx.Done():
			c.log.Debug("Protocol controller stop signal received")

			return
		}
	}
}

// drainTransportError records an error sent just before the message
// channel closed.
func (c *Controller) drainTransportError(errs <-chan error) {
	if errs == nil {
		return
	}

	select {
	case err, ok := <-errs:
		if ok {
			c.handleTransportError(err)
		}
	default:
	}
}

// handleTransportError answers a skipped oversized line or records a fatal
// transport error. It reports whether the error is fatal.
func (c *Controller) handleTransportError(err error) bool {
	switch {
	case err == nil:
		return false
	case stderrors.Is(err, errors.ErrMessageTooLarge):
		c.sendError(nullID, NewError(CodeInvalidRequest, "Request too large", nil))

		return false
	}

	c.log.Error("Transport error in protocol", "error", err)
	c.setFatalError(err)

	return true
}

// handleLine decodes one inbound line and routes it.
func (c *Controller) handleLine(line []byte) {
	if !json.Valid(line) {
		c.log.Warn("Received malformed JSON", "data_len", len(line))
		c.sendError(nullID, NewError(CodeParseError, "Parse error", nil))

		return
	}

	if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && trimmed[0] == '[' {
		c.sendError(nullID, NewError(CodeInvalidRequest, "Batch requests are not supported", nil))

		return
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.sendError(nullID, NewError(CodeInvalidRequest, "Invalid request", err.Error()))

		return
	}

	id := msg.ID
	if len(id) > 0 {
		if _, ok := idKey(id); !ok {
			id = nullID
		}
	}

	if msg.JSONRPC != Version {
		if len(id) > 0 {
			c.sendError(id, NewError(CodeInvalidRequest, `jsonrpc must be "2.0"`, nil))
		}

		return
	}

	switch {
	case msg.Method == "" && (msg.Result != nil || msg.Error != nil):
		c.log.Debug("Ignoring inbound response", "id", string(msg.ID))

	case msg.Method == "":
		if len(id) > 0 {
			c.sendError(id, NewError(CodeInvalidRequest, "Missing method", nil))
		}

	case msg.IsNotification():
		c.handleNotification(&Request{Method: msg.Method, Params: msg.Params})

	case bytes.Equal(id, nullID):
		c.sendError(nullID, NewError(CodeInvalidRequest, "Request id must be a string or number", nil))

	default:
		c.enqueue(&Request{ID: msg.ID, Method: msg.Method, Params: msg.Params})
	}
}

// enqueue registers a request as in flight and hands it to the workers.
func (c *Controller) enqueue(req *Request) {
	key, _ := idKey(req.ID)

	opCtx, cancel := context.WithCancel(c.ctx)
	op := &inFlightOperation{
		key:      key,
		req:      req,
		ctx:      opCtx,
		cancel:   cancel,
		enqueued: time.Now(),
	}

	c.inFlightMu.Lock()

	if _, dup := c.inFlight[key]; dup {
		c.inFlightMu.Unlock()
		cancel()

		c.log.Warn("Duplicate in-flight request id", "id", string(req.ID), "method", req.Method)
		c.sendError(req.ID, NewError(CodeInvalidRequest, "Duplicate request id", nil))

		return
	}

	c.inFlight[key] = op
	c.inFlightMu.Unlock()

	c.log.Debug("Queued request", "id", string(req.ID), "method", req.Method)

	select {
	case c.queue <- op:
	case <-c.ctx.Done():
		c.finish(op, nil, NewError(CodeRequestCancelled, "Request cancelled", nil))
	}
}

// worker serves queued requests until the queue is closed.
func (c *Controller) worker() {
	for op := range c.queue {
		c.serve(op)
	}
}

// serve runs the handler for one request and sends its response.
func (c *Controller) serve(op *inFlightOperation) {
	if op.ctx.Err() != nil {
		c.log.Debug("Request cancelled before it started", "id", string(op.req.ID))
		c.finish(op, nil, NewError(CodeRequestCancelled, "Request cancelled", nil))

		return
	}

	c.handlersMu.RLock()
	handler, exists := c.handlers[op.req.Method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Debug("No handler registered for method", "method", op.req.Method)
		c.finish(op, nil, NewError(CodeMethodNotFound, "Method not found: "+op.req.Method, nil))

		return
	}

	result, err := c.invoke(op, handler)

	if op.ctx.Err() == context.Canceled {
		c.log.Debug("Handler was cancelled", "id", string(op.req.ID))
		c.finish(op, nil, NewError(CodeRequestCancelled, "Request cancelled", nil))

		return
	}

	if err != nil {
		rpcErr, ok := stderrors.AsType[*Error](err)
		if !ok {
			c.log.Warn("Handler returned error", "id", string(op.req.ID), "method", op.req.Method, "error", err.Error())
			rpcErr = NewError(CodeInternalError, err.Error(), nil)
		}

		c.finish(op, nil, rpcErr)

		return
	}

	if result == nil {
		result = struct{}{}
	}

	c.finish(op, result, nil)
}

// invoke calls a handler, converting a panic into an internal error.
func (c *Controller) invoke(op *inFlightOperation, handler RequestHandler) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Request handler panicked",
				"id", string(op.req.ID),
				"method", op.req.Method,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			result = nil
			err = NewError(CodeInternalError, fmt.Sprintf("Internal error: %v", r), nil)
		}
	}()

	return handler(op.ctx, op.req)
}

// finish removes a request from the in-flight set and sends its response.
func (c *Controller) finish(op *inFlightOperation, result any, rpcErr *Error) {
	c.inFlightMu.Lock()
	delete(c.inFlight, op.key)
	c.inFlightMu.Unlock()

	op.cancel()

	c.log.Debug("Request finished",
		"id", string(op.req.ID),
		"method", op.req.Method,
		"duration", time.Since(op.enqueued),
		"error", rpcErr != nil,
	)

	if rpcErr != nil {
		c.sendError(op.req.ID, rpcErr)

		return
	}

	c.send(&Response{JSONRPC: Version, ID: op.req.ID, Result: result})
}

// handleNotification routes a notification. Unknown notifications are ignored.
func (c *Controller) handleNotification(req *Request) {
	if req.Method == MethodCancelled {
		c.handleCancelNotification(req)

		return
	}

	c.handlersMu.RLock()
	handler, exists := c.notifications[req.Method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Debug("Ignoring notification", "method", req.Method)

		return
	}

	handler(c.ctx, req)
}

// handleCancelNotification cancels the in-flight request named by params.requestId.
func (c *Controller) handleCancelNotification(req *Request) {
	requestID := gjson.GetBytes(req.Params, "requestId")

	key, ok := resultKey(requestID)
	if !ok {
		c.log.Warn("Cancel notification missing requestId")

		return
	}

	reason := gjson.GetBytes(req.Params, "reason").String()

	c.inFlightMu.Lock()
	op, exists := c.inFlight[key]

	if exists {
		op.cancel()
	}

	c.inFlightMu.Unlock()

	c.log.Debug("Cancel notification processed",
		"request_id", requestID.Raw,
		"found", exists,
		"reason", reason,
	)
}

// CancelAllInFlight cancels every queued or running request.
func (c *Controller) CancelAllInFlight() {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()

	for _, op := range c.inFlight {
		op.cancel()
	}
}

// InFlight returns the number of requests queued or running.
func (c *Controller) InFlight() int {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()

	return len(c.inFlight)
}

func (c *Controller) sendError(id json.RawMessage, rpcErr *Error) {
	if len(id) == 0 {
		id = nullID
	}

	c.send(&Response{JSONRPC: Version, ID: id, Error: rpcErr})
}

// send writes a response. Responses are delivered even while stopping so
// every request is answered.
func (c *Controller) send(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal response", "id", string(resp.ID), "error", err)

		data, err = json.Marshal(&Response{
			JSONRPC: Version,
			ID:      resp.ID,
			Error:   NewError(CodeInternalError, "Failed to encode result: "+err.Error(), nil),
		})
		if err != nil {
			return
		}
	}

	if err := c.transport.SendMessage(context.WithoutCancel(c.ctx), data); err != nil {
		if stderrors.Is(err, errors.ErrTransportClosed) {
			c.log.Debug("Could not send response after transport closed", "id", string(resp.ID))

			return
		}

		c.log.Error("Failed to send response", "id", string(resp.ID), "error", err)
	}
}
