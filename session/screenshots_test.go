package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/desktop"
	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
	"github.com/room4-2/livedesk/screen"
	"github.com/room4-2/livedesk/shell"
)

type fakeShooter struct {
	err   error
	shots int
}

func (f *fakeShooter) Shot(context.Context) (*screen.Frame, error) {
	f.shots++
	if f.err != nil {
		return nil, f.err
	}
	return &screen.Frame{Data: []byte("frame"), Width: 10, Height: 10, Scale: 1}, nil
}

func TestTurnScreenshotAttachedToUserText(t *testing.T) {
	model := newFakeModel()
	shooter := &fakeShooter{}
	m := &shotModel{Model: model, shooter: shooter, logger: zap.NewNop()}
	ctx := context.Background()

	require.NoError(t, m.SendContent(ctx, relay.Content{Role: messages.RoleUser, Text: "open notepad"}))
	require.NoError(t, m.SendContent(ctx, relay.Content{Role: messages.RoleModel, Text: "earlier reply"}))
	require.NoError(t, m.SendContent(ctx, relay.Content{Role: messages.RoleUser, Text: ""}))
	withMedia := relay.Content{Role: messages.RoleUser, Text: "look", Media: []relay.Blob{{MIMEType: "image/png", Data: []byte("own")}}}
	require.NoError(t, m.SendContent(ctx, withMedia))

	assert.Equal(t, 1, shooter.shots)
	require.Len(t, model.contents, 4)
	assert.Equal(t, []relay.Blob{{MIMEType: screen.MIMEType, Data: []byte("frame")}}, model.contents[0].Media)
	assert.Empty(t, model.contents[1].Media)
	assert.Empty(t, model.contents[2].Media)
	assert.Equal(t, withMedia, model.contents[3])
}

func TestTurnScreenshotFailureSendsTextAlone(t *testing.T) {
	model := newFakeModel()
	m := &shotModel{Model: model, shooter: &fakeShooter{err: errors.New("import is not installed")}, logger: zap.NewNop()}

	require.NoError(t, m.SendContent(context.Background(), relay.Content{Role: messages.RoleUser, Text: "open notepad"}))
	assert.Equal(t, []relay.Content{{Role: messages.RoleUser, Text: "open notepad"}}, model.contents)
}

func TestScreenshotAfterToolRound(t *testing.T) {
	model := newFakeModel()
	shooter := &fakeShooter{}
	m := &shotModel{Model: model, shooter: shooter, logger: zap.NewNop()}
	ctx := context.Background()

	m.afterTools(ctx, []relay.ToolCall{{ID: "t1", Name: "press_key"}, {ID: "t2", Name: "type_text"}})
	assert.Equal(t, [][]byte{[]byte("frame")}, model.frames)

	// the model already has a fresh capture
	m.afterTools(ctx, []relay.ToolCall{{ID: "t3", Name: "click"}, {ID: "t4", Name: "capture_screen"}})
	assert.Len(t, model.frames, 1)
	assert.Equal(t, 1, shooter.shots)

	model.videoErr = errors.New("gemini session closed")
	m.afterTools(ctx, []relay.ToolCall{{ID: "t5", Name: "press_key"}})
	assert.Equal(t, 2, shooter.shots)
	assert.Len(t, model.frames, 1)
}

// screenRunner answers every command with a small PNG
type screenRunner struct{ png []byte }

func (r screenRunner) Run(context.Context, shell.Command) ([]byte, error) { return r.png, nil }
func (r screenRunner) Start(shell.Command) (int, error)                   { return 1, nil }

func grayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 200, 120))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCreateSessionWithTurnScreenshots(t *testing.T) {
	cfg := testConfig()
	runner := screenRunner{png: grayPNG(t)}
	conn := &fakeConnector{}
	m, err := NewManager(cfg, conn, func() *desktop.Toolset {
		return desktop.New(runner, screen.NewCapturer(runner, cfg.Screen), nil, zap.NewNop())
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	tr := newPipeTransport()
	s, err := m.CreateSession(context.Background(), "desk", false, tr, WithTurnScreenshots())
	require.NoError(t, err)

	raw, err := messages.TextFrame("open notepad")
	require.NoError(t, err)
	tr.in <- raw
	close(tr.in)

	require.NoError(t, m.Serve(context.Background(), s))
	contents := conn.models[0].contents
	require.Len(t, contents, 1)
	assert.Equal(t, "open notepad", contents[0].Text)
	require.Len(t, contents[0].Media, 1)
	assert.Equal(t, screen.MIMEType, contents[0].Media[0].MIMEType)
	_, err = jpeg.Decode(bytes.NewReader(contents[0].Media[0].Data))
	assert.NoError(t, err)
}

func TestCreateSessionWithoutTurnScreenshots(t *testing.T) {
	conn := &fakeConnector{}
	m := newTestManager(t, testConfig(), conn)

	tr := newPipeTransport()
	s, err := m.CreateSession(context.Background(), "desk", false, tr)
	require.NoError(t, err)

	raw, err := messages.TextFrame("open notepad")
	require.NoError(t, err)
	tr.in <- raw
	close(tr.in)

	require.NoError(t, m.Serve(context.Background(), s))
	assert.Empty(t, conn.models[0].contents[0].Media)
}
