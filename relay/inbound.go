package relay

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/room4-2/livedesk/messages"
)

// inbound forwards client frames to the model in receipt order
func (r *Relay) inbound(ctx context.Context) error {
	for {
		raw, err := r.transport.ReadFrame(ctx)
		if err != nil {
			return err
		}
		if err := r.forwardClientFrame(ctx, raw); err != nil {
			return err
		}
	}
}

// forwardClientFrame handles one frame. Bad frames are reported to the
// client; only transport or model failures are returned.
func (r *Relay) forwardClientFrame(ctx context.Context, raw []byte) error {
	frame, err := messages.DecodeClientFrame(raw)
	if err != nil {
		r.logger.Warn("malformed client frame", zap.Error(err))
		return r.transport.WriteFrame(ctx, messages.NewSystemFrame("Invalid frame: %v", err))
	}

	switch frame.MIMEType {
	case messages.MIMEText:
		r.logger.Debug("client text", zap.String("role", frame.Role), zap.Int("len", len(frame.Data)))
		if err := r.session.SendContent(ctx, Content{Role: frame.Role, Text: frame.Data}); err != nil {
			return fmt.Errorf("send content: %w", err)
		}

	case messages.MIMEAudio:
		pcm, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			r.logger.Warn("bad audio payload", zap.Error(err))
			return r.transport.WriteFrame(ctx, messages.NewSystemFrame("Invalid audio data: %v", err))
		}
		if err := r.session.SendRealtimeAudio(ctx, pcm); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}

	default:
		r.logger.Warn("unsupported mime type", zap.String("mime_type", frame.MIMEType))
		return r.transport.WriteFrame(ctx, messages.NewSystemFrame("Unsupported MIME: %s", frame.MIMEType))
	}
	return nil
}
