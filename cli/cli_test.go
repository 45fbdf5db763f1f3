package cli

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/desktop"
	"github.com/room4-2/livedesk/gemini"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
	"github.com/room4-2/livedesk/session"
	"github.com/room4-2/livedesk/shell"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type replyModel struct {
	mu       sync.Mutex
	prompt   string
	contents []relay.Content

	events chan *relay.Event
	once   sync.Once
	closed chan struct{}
}

func (m *replyModel) SendContent(_ context.Context, c relay.Content) error {
	m.mu.Lock()
	m.contents = append(m.contents, c)
	m.mu.Unlock()
	m.events <- &relay.Event{Text: "Opening notepad"}
	m.events <- &relay.Event{TurnComplete: true}
	return nil
}
func (m *replyModel) SendRealtimeAudio(context.Context, []byte) error       { return nil }
func (m *replyModel) SendToolResult(context.Context, relay.ToolResult) error { return nil }
func (m *replyModel) SendVideoFrame(context.Context, []byte) error           { return nil }

func (m *replyModel) Events(ctx context.Context) iter.Seq2[*relay.Event, error] {
	return func(yield func(*relay.Event, error) bool) {
		for {
			select {
			case ev := <-m.events:
				if !yield(ev, nil) {
					return
				}
			case <-ctx.Done():
				return
			case <-m.closed:
				return
			}
		}
	}
}

func (m *replyModel) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *replyModel) sentContents() []relay.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]relay.Content(nil), m.contents...)
}

// screenRunner answers the screenshot command with a small PNG
type screenRunner struct {
	png []byte
}

func (r *screenRunner) Run(_ context.Context, cmd shell.Command) ([]byte, error) {
	if cmd.Name == "import" {
		return r.png, nil
	}
	return nil, nil
}

func (r *screenRunner) Start(shell.Command) (int, error) { return 0, nil }

func whitePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func stubEnvironment(t *testing.T, model *replyModel) {
	t.Helper()
	origLoad, origBackend, origRunner := loadConfig, newBackend, newRunner
	t.Cleanup(func() { loadConfig, newBackend, newRunner = origLoad, origBackend, origRunner })

	shots := &screenRunner{png: whitePNG(t)}
	newRunner = func() shell.Runner { return shots }

	loadConfig = func() (*config.Config, error) {
		cfg := config.Default()
		cfg.GeminiAPIKey = "test-key"
		cfg.RedisURL = ""
		return cfg, nil
	}
	newBackend = func(context.Context, *config.Config, *zap.Logger) (session.Connector, desktop.Vision, error) {
		connector := session.ConnectorFunc(func(_ context.Context, opts gemini.ConnectOptions) (session.Model, error) {
			model.mu.Lock()
			model.prompt = opts.SystemPrompt
			model.mu.Unlock()
			return model, nil
		})
		return connector, nil, nil
	}
}

func newReplyModel() *replyModel {
	return &replyModel{events: make(chan *relay.Event, 8), closed: make(chan struct{})}
}

func TestVersionNeedsNoConfig(t *testing.T) {
	orig := loadConfig
	t.Cleanup(func() { loadConfig = orig })
	loadConfig = func() (*config.Config, error) { return nil, errors.New("GEMINI_API_KEY environment variable is required") }

	for _, args := range [][]string{{"version"}, {"--version"}} {
		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		assert.Equal(t, Version+"\n", out.String())
	}
}

func TestConfigErrorFailsCommand(t *testing.T) {
	orig := loadConfig
	t.Cleanup(func() { loadConfig = orig })
	loadConfig = func() (*config.Config, error) { return nil, errors.New("GEMINI_API_KEY environment variable is required") }

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"serve"})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "load config")
}

// runChat types one command into chat, waits for the reply and exits
func runChat(t *testing.T, args ...string) {
	t.Helper()
	in, feed := io.Pipe()
	var out syncBuffer
	cmd := NewRootCommand()
	cmd.SetIn(in)
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"chat", "--log-level", "error"}, args...))

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(context.Background()) }()

	_, err := io.WriteString(feed, "open notepad\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Agent: Opening notepad\n> ")
	}, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(feed, "exit\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not exit")
	}
	_ = feed.Close()
}

func TestChatConversation(t *testing.T) {
	model := newReplyModel()
	stubEnvironment(t, model)

	runChat(t)

	model.mu.Lock()
	defer model.mu.Unlock()
	assert.Equal(t, session.DefaultSystemPrompt, model.prompt)
}

func TestChatAttachesScreenshotToCommands(t *testing.T) {
	model := newReplyModel()
	stubEnvironment(t, model)

	runChat(t)

	contents := model.sentContents()
	require.Len(t, contents, 1)
	assert.Equal(t, "open notepad", contents[0].Text)
	require.Len(t, contents[0].Media, 1)
	assert.Equal(t, screen.MIMEType, contents[0].Media[0].MIMEType)
	_, err := jpeg.Decode(bytes.NewReader(contents[0].Media[0].Data))
	assert.NoError(t, err)
}

func TestChatScreenshotFlagOff(t *testing.T) {
	model := newReplyModel()
	stubEnvironment(t, model)

	runChat(t, "--screenshot=false")

	contents := model.sentContents()
	require.Len(t, contents, 1)
	assert.Equal(t, "open notepad", contents[0].Text)
	assert.Empty(t, contents[0].Media)
}

func TestChatMissingPromptFile(t *testing.T) {
	stubEnvironment(t, newReplyModel())

	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"chat", "--system-prompt-file", filepath.Join(t.TempDir(), "missing.txt")})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "read system prompt")
}
