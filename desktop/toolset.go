// Package desktop implements the local actions the model can call: keyboard,
// mouse, screen, clipboard, windows, processes and files.
package desktop

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/room4-2/livedesk/functions"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
	"github.com/room4-2/livedesk/shell"
)

// ErrNoSession is returned by capture_screen before a model session is attached
var ErrNoSession = errors.New("no model session attached")

// ContentSink receives content turns injected by actions
type ContentSink interface {
	SendContent(ctx context.Context, content relay.Content) error
}

// Vision answers a question about an image
type Vision interface {
	Analyze(ctx context.Context, image []byte, mimeType, question string) (string, error)
}

// Toolset holds what the actions need on one host. One toolset per session:
// capture_screen injects into the attached session.
type Toolset struct {
	runner   shell.Runner
	capturer *screen.Capturer
	vision   Vision
	logger   *zap.Logger

	sink atomic.Pointer[sinkRef]
}

type sinkRef struct{ ContentSink }

// New creates a toolset. vision may be nil, which disables analyze_screen.
func New(runner shell.Runner, capturer *screen.Capturer, vision Vision, logger *zap.Logger) *Toolset {
	return &Toolset{
		runner:   runner,
		capturer: capturer,
		vision:   vision,
		logger:   logger.Named("desktop"),
	}
}

// Attach sets the session that receives captured screenshots
func (t *Toolset) Attach(sink ContentSink) {
	t.sink.Store(&sinkRef{sink})
}

func (t *Toolset) contentSink() (ContentSink, error) {
	ref := t.sink.Load()
	if ref == nil || ref.ContentSink == nil {
		return nil, ErrNoSession
	}
	return ref.ContentSink, nil
}

// Registry declares every action on a fresh registry
func (t *Toolset) Registry() *functions.Registry {
	reg := functions.NewRegistry()
	t.registerInput(reg)
	t.registerScreen(reg)
	t.registerSystem(reg)
	t.registerFiles(reg)
	return reg
}

// run executes cmd and logs it at debug level
func (t *Toolset) run(ctx context.Context, cmd shell.Command) ([]byte, error) {
	t.logger.Debug("exec", zap.Stringer("cmd", cmd))
	return t.runner.Run(ctx, cmd)
}

// action adapts a body that reports failure as an error into the uniform
// status record
func action(body func(ctx context.Context, args map[string]any) (map[string]any, error)) functions.Action {
	return func(ctx context.Context, args map[string]any) (any, error) {
		result, err := body(ctx, args)
		if err != nil {
			return functions.Failure(err), nil
		}
		return result, nil
	}
}

// Capturer returns the screen capturer shared by the screen actions
func (t *Toolset) Capturer() *screen.Capturer {
	return t.capturer
}
