package screen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Shooter produces frames
type Shooter interface {
	Shot(ctx context.Context) (*Frame, error)
}

// ErrSinkClosed is returned by a sink whose receiver has gone away. The
// streamer stops without error.
var ErrSinkClosed = errors.New("frame sink closed")

// FrameSink receives encoded frames
type FrameSink func(ctx context.Context, jpeg []byte) error

// Streamer pushes a frame to a sink at a fixed pace
type Streamer struct {
	shooter Shooter
	sink    FrameSink
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewStreamer creates a streamer sending one frame per interval
func NewStreamer(shooter Shooter, sink FrameSink, interval time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		shooter: shooter,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger.Named("screen"),
	}
}

// Run streams until ctx is cancelled, the sink closes or the sink fails. Capture failures
// are logged and skipped.
func (s *Streamer) Run(ctx context.Context) error {
	sent := 0
	defer func() {
		s.logger.Debug("screen stream stopped", zap.Int("frames", sent))
	}()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		frame, err := s.shooter.Shot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("screen capture failed", zap.Error(err))
			continue
		}

		if err := s.sink(ctx, frame.Data); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSinkClosed) {
				return nil
			}
			return fmt.Errorf("send frame: %w", err)
		}
		sent++
	}
}
