package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
)

// Model is a connected live model session
type Model interface {
	relay.ModelSession
	SendVideoFrame(ctx context.Context, jpeg []byte) error
	Close() error
}

// ClientSession represents a single user's connection and its model session
type ClientSession struct {
	ID           string
	AudioEnabled bool
	CreatedAt    time.Time

	transport relay.Transport
	model     Model
	relay     *relay.Relay
	streamer  *screen.Streamer
	logger    *zap.Logger

	lastActivity atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClientSession(id string, audio bool, transport relay.Transport, model Model, logger *zap.Logger) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())
	cs := &ClientSession{
		ID:           id,
		AudioEnabled: audio,
		CreatedAt:    time.Now(),
		model:        model,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	cs.transport = &activityTransport{Transport: transport, touch: cs.touch}
	cs.touch()
	return cs
}

func (cs *ClientSession) touch() {
	cs.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity is the time of the last frame in either direction
func (cs *ClientSession) LastActivity() time.Time {
	return time.Unix(0, cs.lastActivity.Load())
}

// Run relays until the client leaves, the model session ends, ctx is
// cancelled or the session is closed.
func (cs *ClientSession) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(cs.ctx, cancel)
	defer stop()

	cs.logger.Info("session started", zap.Bool("audio", cs.AudioEnabled))

	var wg sync.WaitGroup
	if cs.streamer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cs.streamer.Run(ctx); err != nil {
				cs.logger.Warn("screen stream ended", zap.Error(err))
			}
		}()
	}

	err := cs.relay.Run(ctx)
	cancel()
	wg.Wait()
	cs.Close()

	cs.logger.Info("session ended", zap.Duration("duration", time.Since(cs.CreatedAt)), zap.Error(err))
	return err
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.closeOnce.Do(func() {
		cs.cancel()
		if err := cs.transport.Close(); err != nil {
			cs.logger.Debug("close transport", zap.Error(err))
		}
		if err := cs.model.Close(); err != nil {
			cs.logger.Debug("close model session", zap.Error(err))
		}
	})
	return nil
}

// IsClosed returns whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	return cs.ctx.Err() != nil
}

// activityTransport records activity on every frame
type activityTransport struct {
	relay.Transport
	touch func()
}

func (t *activityTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	raw, err := t.Transport.ReadFrame(ctx)
	if err == nil {
		t.touch()
	}
	return raw, err
}

func (t *activityTransport) WriteFrame(ctx context.Context, frame *messages.ServerFrame) error {
	err := t.Transport.WriteFrame(ctx, frame)
	if err == nil {
		t.touch()
	}
	return err
}
