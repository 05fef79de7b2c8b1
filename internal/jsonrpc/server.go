package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Notify once the server has stopped writing.
var ErrClosed = errors.New("jsonrpc: server closed")

// HandlerFunc answers a request. The returned value is marshaled as the
// result; a returned error becomes the response's error object.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationFunc handles a client notification.
type NotificationFunc func(ctx context.Context, params json.RawMessage)

// Notifier sends notifications to the client.
type Notifier interface {
	Notify(method string, params any) error
}

// Server reads framed messages, dispatches them to registered handlers in
// arrival order and writes responses and notifications through a single
// writer goroutine.
type Server struct {
	in      *FrameReader
	out     io.Writer
	logger  *slog.Logger
	version string

	handlers      map[string]HandlerFunc
	notifications map[string]NotificationFunc

	outbound  chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQueueSize sets the capacity of the outbound message queue.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.outbound = make(chan *Message, n)
		}
	}
}

// WithMaxFrameSize bounds the size of an incoming message body. Larger
// frames are skipped and logged.
func WithMaxFrameSize(n int64) Option {
	return func(s *Server) { s.in.SetMaxSize(n) }
}

// WithVersion sets the string answered by the "version" method.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server reading from r and writing to w.
func NewServer(r io.Reader, w io.Writer, opts ...Option) *Server {
	s := &Server{
		in:            NewFrameReader(r),
		out:           w,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		version:       "dev",
		handlers:      make(map[string]HandlerFunc),
		notifications: make(map[string]NotificationFunc),
		outbound:      make(chan *Message, 256),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers a request handler. It must be called before Run.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// HandleNotification registers a notification handler. It must be called
// before Run.
func (s *Server) HandleNotification(method string, h NotificationFunc) {
	s.notifications[method] = h
}

// Notify queues a notification. It blocks while the queue is full and fails
// with ErrClosed after shutdown.
func (s *Server) Notify(method string, params any) error {
	msg := &Message{JSONRPC: "2.0", Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
		msg.Params = b
	}
	return s.enqueue(msg)
}

// Done is closed when the server stops reading.
func (s *Server) Done() <-chan struct{} { return s.done }

// Run processes messages until the input ends, a shutdown or exit arrives,
// or ctx is canceled. Queued messages are flushed before it returns.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("jsonrpc server starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.close()
		return s.readLoop(gctx)
	})
	g.Go(func() error {
		return s.writeLoop(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	s.logger.Info("jsonrpc server stopped")
	return err
}

func (s *Server) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type frame struct {
	body []byte
	err  error
}

func (s *Server) readLoop(ctx context.Context) error {
	frames := make(chan frame)
	go func() {
		for {
			body, err := s.in.Read()
			select {
			case frames <- frame{body, err}:
			case <-s.done:
				return
			}
			if err != nil && !isFrameError(err) {
				return
			}
		}
	}()

	for {
		var f frame
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f = <-frames:
		}

		if f.err != nil {
			if isFrameError(f.err) {
				s.logger.Warn("dropping malformed frame", "error", f.err)
				continue
			}
			if errors.Is(f.err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			return fmt.Errorf("reading message: %w", f.err)
		}

		if stop := s.dispatch(ctx, f.body); stop {
			return nil
		}
	}
}

func isFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// dispatch handles one message body and reports whether reading should stop.
func (s *Server) dispatch(ctx context.Context, body []byte) bool {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Warn("unparseable message", "error", err)
		var probe struct {
			ID *json.RawMessage `json:"id"`
		}
		if json.Unmarshal(body, &probe) == nil && probe.ID != nil {
			s.respondError(probe.ID, &Error{Code: CodeParseError, Message: err.Error()})
		}
		return false
	}

	switch {
	case msg.IsRequest():
		return s.handleRequest(ctx, &msg)
	case msg.IsNotification():
		return s.handleNotification(ctx, &msg)
	case msg.ID != nil:
		s.respondError(msg.ID, &Error{Code: CodeInvalidRequest, Message: "missing method"})
	default:
		s.logger.Debug("ignoring message without method or id")
	}
	return false
}

func (s *Server) handleRequest(ctx context.Context, msg *Message) bool {
	logger := s.logger.With("method", msg.Method, "id", msg.IDString())
	logger.Debug("request")

	switch msg.Method {
	case "shutdown":
		s.respond(msg.ID, nil)
		return true
	case "version":
		s.respond(msg.ID, s.version)
		return false
	}

	h, ok := s.handlers[msg.Method]
	if !ok {
		s.respondError(msg.ID, &Error{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method})
		return false
	}

	var after afterHooks
	result, err := s.call(withAfterHooks(ctx, &after), h, msg.Params)
	if err != nil {
		rpcErr := toError(err)
		logger.Debug("request failed", "code", rpcErr.Code, "error", err)
		s.respondError(msg.ID, rpcErr)
	} else {
		s.respond(msg.ID, result)
	}
	after.run()
	return false
}

type afterHooksKey struct{}

type afterHooks []func()

func (a afterHooks) run() {
	for _, fn := range a {
		fn()
	}
}

func withAfterHooks(ctx context.Context, hooks *afterHooks) context.Context {
	return context.WithValue(ctx, afterHooksKey{}, hooks)
}

// AfterResponse schedules fn to run once the response to the current request
// has been queued, so notifications it sends follow the response. Outside a
// request handler fn runs immediately.
func AfterResponse(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(afterHooksKey{}).(*afterHooks)
	if !ok {
		fn()
		return
	}
	*hooks = append(*hooks, fn)
}

func (s *Server) call(ctx context.Context, h HandlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return h(ctx, params)
}

func (s *Server) handleNotification(ctx context.Context, msg *Message) bool {
	switch msg.Method {
	case "exit":
		return true
	case "$/cancelRequest":
		s.logger.Debug("ignoring cancel request", "params", string(msg.Params))
		return false
	}

	h, ok := s.notifications[msg.Method]
	if !ok {
		s.logger.Debug("unhandled notification", "method", msg.Method)
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification handler panicked", "method", msg.Method, "panic", r)
		}
	}()
	h(ctx, msg.Params)
	return false
}

func (s *Server) respond(id *json.RawMessage, result any) {
	b, err := marshalResult(result)
	if err != nil {
		s.respondError(id, &Error{Code: CodeInternalError, Message: "marshaling result: " + err.Error()})
		return
	}
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: b})
}

func (s *Server) respondError(id *json.RawMessage, rpcErr *Error) {
	s.send(&Message{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func (s *Server) send(msg *Message) {
	if err := s.enqueue(msg); err != nil {
		s.logger.Warn("dropping response", "id", msg.IDString(), "error", err)
	}
}

func (s *Server) enqueue(msg *Message) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Server) writeLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-s.outbound:
			if err := s.write(msg); err != nil {
				return err
			}
		case <-s.done:
			return s.flush()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes whatever is still queued.
func (s *Server) flush() error {
	for {
		select {
		case msg := <-s.outbound:
			if err := s.write(msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Server) write(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshaling message", "method", msg.Method, "error", err)
		return nil
	}
	if err := WriteFrame(s.out, body); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}
