package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/room4-2/livedesk/functions"
	"github.com/room4-2/livedesk/messages"
)

// dispatch runs one tool call and sends its result back to the model.
// Action failures become error results; the returned error is only for
// cancellation or a failed send.
func (r *Relay) dispatch(ctx context.Context, call ToolCall) error {
	r.logger.Info("tool call", zap.String("tool", call.Name), zap.String("call_id", call.ID), zap.Any("args", call.Args))

	if !r.transport.Notify(messages.NewSystemFrame("Agent called tool: %s", call.Name)) {
		r.logger.Debug("tool notice dropped", zap.String("tool", call.Name))
	}

	start := time.Now()
	response, err := r.execute(ctx, call)
	if err != nil {
		return err
	}
	r.logger.Debug("tool finished", zap.String("tool", call.Name), zap.Duration("took", time.Since(start)))

	if delay := r.settle[call.Name]; delay > 0 {
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	result := ToolResult{Name: call.Name, ID: call.ID, Response: response}
	if err := r.session.SendToolResult(ctx, result); err != nil {
		return fmt.Errorf("send tool result %s: %w", call.Name, err)
	}
	return nil
}

// execute resolves and runs the action. The action runs on its own goroutine
// so a cancelled relay does not wait for it.
func (r *Relay) execute(ctx context.Context, call ToolCall) (map[string]any, error) {
	action, ok := r.executor.Lookup(call.Name)
	if !ok {
		r.logger.Warn("unknown tool", zap.String("tool", call.Name))
		return map[string]any{"error": "Unknown tool: " + call.Name}, nil
	}

	done := make(chan map[string]any, 1)
	go func() {
		done <- invoke(ctx, action, call.Args)
	}()

	select {
	case res := <-done:
		if msg, failed := res["error"]; failed && len(res) == 1 {
			r.logger.Warn("tool failed", zap.String("tool", call.Name), zap.Any("error", msg))
		}
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func invoke(ctx context.Context, action functions.Action, args map[string]any) (result map[string]any) {
	defer func() {
		if p := recover(); p != nil {
			result = map[string]any{"error": fmt.Sprintf("panic: %v", p)}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	raw, err := action(ctx, args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return Normalize(raw)
}
