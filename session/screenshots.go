package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
)

// Option configures one session
type Option func(*sessionOptions)

type sessionOptions struct {
	turnShots bool
}

// WithTurnScreenshots attaches a fresh screenshot to every user text turn and
// sends another one as a video frame after each round of tool calls.
func WithTurnScreenshots() Option {
	return func(o *sessionOptions) {
		o.turnShots = true
	}
}

// shotModel keeps the model looking at the current screen
type shotModel struct {
	Model
	shooter screen.Shooter
	logger  *zap.Logger
}

// SendContent adds a screenshot to user text. A failed capture sends the
// text alone.
func (m *shotModel) SendContent(ctx context.Context, content relay.Content) error {
	if content.Role != messages.RoleModel && content.Text != "" && len(content.Media) == 0 {
		frame, err := m.shooter.Shot(ctx)
		if err != nil {
			m.logger.Warn("turn screenshot failed", zap.Error(err))
		} else {
			content.Media = []relay.Blob{{MIMEType: screen.MIMEType, Data: frame.Data}}
		}
	}
	return m.Model.SendContent(ctx, content)
}

// afterTools shows the model the result of its actions. Rounds that already
// captured the screen are skipped.
func (m *shotModel) afterTools(ctx context.Context, calls []relay.ToolCall) {
	for _, call := range calls {
		if call.Name == "capture_screen" {
			return
		}
	}
	frame, err := m.shooter.Shot(ctx)
	if err != nil {
		m.logger.Warn("post-action screenshot failed", zap.Error(err))
		return
	}
	if err := m.Model.SendVideoFrame(ctx, frame.Data); err != nil {
		m.logger.Debug("post-action screenshot not sent", zap.Error(err))
	}
}
