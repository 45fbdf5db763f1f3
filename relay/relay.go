// Package relay bridges one client transport to one live model session.
//
// Two goroutines run per connection. The inbound one reads client frames and
// forwards them to the model as content or realtime audio. The outbound one
// consumes model events, dispatches tool calls to the local executor, and
// forwards text deltas, audio and turn markers to the client. Whichever
// direction ends first cancels the other, and the transport is closed.
package relay

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/room4-2/livedesk/functions"
	"github.com/room4-2/livedesk/messages"
)

// ErrClosed is returned by transports once the peer has gone away
var ErrClosed = errors.New("transport closed")

// ErrStarted is returned when Run is called more than once
var ErrStarted = errors.New("relay already started")

// Blob is inline media
type Blob struct {
	MIMEType string
	Data     []byte
}

// Content is one conversation turn sent to the model
type Content struct {
	Role  string
	Text  string
	Media []Blob
}

// ToolCall is a model request to run a local action
type ToolCall struct {
	Name string
	ID   string
	Args map[string]any
}

// ToolResult answers exactly one ToolCall; ID echoes the call
type ToolResult struct {
	Name     string
	ID       string
	Response map[string]any
}

// Event is one item of the model's output stream. Any combination of the
// fields may be set on a single event.
type Event struct {
	Text         string
	Audio        *Blob
	ToolCalls    []ToolCall
	TurnComplete bool
}

// Empty reports whether the event carries nothing to act on
func (e *Event) Empty() bool {
	return e.Text == "" && e.Audio == nil && len(e.ToolCalls) == 0 && !e.TurnComplete
}

// Transport is the user-facing side of the relay. WriteFrame and Notify must
// be safe for concurrent use.
type Transport interface {
	// ReadFrame blocks for the next raw client frame. It returns ErrClosed
	// or io.EOF once the client is gone.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame queues a frame, blocking until there is room.
	WriteFrame(ctx context.Context, frame *messages.ServerFrame) error
	// Notify queues a frame without blocking and reports whether it was queued.
	Notify(frame *messages.ServerFrame) bool
	Close() error
}

// ModelSession is the model side of the relay
type ModelSession interface {
	SendContent(ctx context.Context, content Content) error
	SendRealtimeAudio(ctx context.Context, pcm []byte) error
	SendToolResult(ctx context.Context, result ToolResult) error
	// Events yields model output until the session ends or ctx is cancelled.
	// It is consumed once.
	Events(ctx context.Context) iter.Seq2[*Event, error]
}

// Executor resolves tool names to local actions
type Executor interface {
	Lookup(name string) (functions.Action, bool)
}

// State is the lifecycle position of a relay
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the logger; the relay names it "relay".
func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) {
		r.logger = logger.Named("relay")
	}
}

// WithSettleDelay sleeps for delay after each of the named tools runs, before
// its result goes back to the model.
func WithSettleDelay(delay time.Duration, tools ...string) Option {
	return func(r *Relay) {
		for _, name := range tools {
			r.settle[name] = delay
		}
	}
}

// WithToolRoundHook calls fn after every tool call of one event has been
// answered.
func WithToolRoundHook(fn func(ctx context.Context, calls []ToolCall)) Option {
	return func(r *Relay) {
		r.afterTools = fn
	}
}

// Relay moves frames between one transport and one model session
type Relay struct {
	transport Transport
	session   ModelSession
	executor  Executor
	logger    *zap.Logger

	settle map[string]time.Duration
	sleep  func(ctx context.Context, d time.Duration) error

	afterTools func(ctx context.Context, calls []ToolCall)

	// written by the outbound goroutine only
	turn turnText

	state atomic.Int32
}

// New creates a relay. It does nothing until Run.
func New(transport Transport, session ModelSession, executor Executor, opts ...Option) *Relay {
	r := &Relay{
		transport: transport,
		session:   session,
		executor:  executor,
		logger:    zap.NewNop(),
		settle:    make(map[string]time.Duration),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state
func (r *Relay) State() State {
	return State(r.state.Load())
}

// Run relays until either direction ends, then closes the transport.
// A clean disconnect returns nil.
func (r *Relay) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := func() {
		r.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
		cancel()
	}

	var g errgroup.Group
	g.Go(func() error {
		defer stop()
		return r.quiet(ctx, "inbound", r.inbound(ctx))
	})
	g.Go(func() error {
		defer stop()
		return r.quiet(ctx, "outbound", r.outbound(ctx))
	})
	err := g.Wait()

	if cerr := r.transport.Close(); cerr != nil {
		r.logger.Debug("transport close", zap.Error(cerr))
	}
	r.state.Store(int32(StateClosed))
	return err
}

// quiet turns expected shutdown errors into nil and logs the rest
func (r *Relay) quiet(ctx context.Context, direction string, err error) error {
	switch {
	case err == nil:
		r.logger.Debug("direction finished", zap.String("direction", direction))
		return nil
	case errors.Is(err, ErrClosed), errors.Is(err, io.EOF):
		r.logger.Debug("transport closed", zap.String("direction", direction))
		return nil
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return nil
	default:
		r.logger.Error("direction failed", zap.String("direction", direction), zap.Error(err))
		return err
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
