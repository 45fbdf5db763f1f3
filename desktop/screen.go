package desktop

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/livedesk/functions"
	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
)

// ScreenshotNote accompanies every injected screenshot
const ScreenshotNote = "[SYSTEM] Here is the screenshot you requested. Analyze it now."

func (t *Toolset) registerScreen(reg *functions.Registry) {
	reg.MustRegister(functions.Declare("capture_screen",
		"Takes a screenshot with a coordinate grid and adds it to the conversation as a new user message. "+
			"Call it whenever you need to see the screen, then wait for the image.",
		nil),
		action(t.captureScreen))

	if t.vision == nil {
		return
	}
	reg.MustRegister(functions.Declare("analyze_screen",
		"Captures the screen and asks a vision model a question about it. Returns a text description.",
		map[string]*genai.Schema{
			"question": functions.StringParam("A specific question about the screen, e.g. 'What error message is shown?'"),
		}),
		action(t.analyzeScreen))
}

func (t *Toolset) captureScreen(ctx context.Context, _ map[string]any) (map[string]any, error) {
	sink, err := t.contentSink()
	if err != nil {
		return nil, err
	}
	frame, err := t.capturer.Shot(ctx)
	if err != nil {
		return nil, err
	}

	content := relay.Content{
		Role:  messages.RoleUser,
		Text:  ScreenshotNote,
		Media: []relay.Blob{{MIMEType: screen.MIMEType, Data: frame.Data}},
	}
	if err := sink.SendContent(ctx, content); err != nil {
		return nil, fmt.Errorf("upload screenshot: %w", err)
	}
	t.logger.Info("screenshot uploaded",
		zap.Int("bytes", len(frame.Data)), zap.Int("width", frame.Width), zap.Int("height", frame.Height))

	return functions.Success("Image uploaded to chat history.", "width", frame.Width, "height", frame.Height), nil
}

func (t *Toolset) analyzeScreen(ctx context.Context, args map[string]any) (map[string]any, error) {
	question, err := functions.StringOr(args, "question", "")
	if err != nil {
		return nil, err
	}
	frame, err := t.capturer.Shot(ctx)
	if err != nil {
		return nil, err
	}
	description, err := t.vision.Analyze(ctx, frame.Data, screen.MIMEType, question)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "success", "description": description}, nil
}
