package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/room4-2/livedesk/messages"
)

// outbound consumes model events until the stream ends
func (r *Relay) outbound(ctx context.Context) error {
	for event, err := range r.session.Events(ctx) {
		if err != nil {
			return fmt.Errorf("model session: %w", err)
		}
		if event == nil || event.Empty() {
			continue
		}
		if err := r.handleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// handleEvent runs tool calls before looking at the event's content; both
// may be present on one event.
func (r *Relay) handleEvent(ctx context.Context, event *Event) error {
	for _, call := range event.ToolCalls {
		if err := r.dispatch(ctx, call); err != nil {
			return err
		}
	}
	if len(event.ToolCalls) > 0 && r.afterTools != nil {
		r.afterTools(ctx, event.ToolCalls)
	}

	if event.Text != "" {
		if delta := r.turn.delta(event.Text); delta != "" {
			if err := r.transport.WriteFrame(ctx, messages.NewTextFrame(delta)); err != nil {
				return err
			}
		}
	}

	if audio := event.Audio; audio != nil && len(audio.Data) > 0 && strings.HasPrefix(audio.MIMEType, messages.MIMEAudio) {
		if err := r.transport.WriteFrame(ctx, messages.NewAudioFrame(audio.Data)); err != nil {
			return err
		}
	}

	if event.TurnComplete {
		r.turn.reset()
		if err := r.transport.WriteFrame(ctx, messages.NewTurnCompleteFrame()); err != nil {
			return err
		}
	}
	return nil
}
