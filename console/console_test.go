package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReadFrameSkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(strings.NewReader("\n  \nopen notepad\n"), &out)
	defer tr.Close()

	raw, err := tr.ReadFrame(context.Background())
	require.NoError(t, err)
	frame, err := messages.DecodeClientFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, messages.MIMEText, frame.MIMEType)
	assert.Equal(t, "open notepad", frame.Data)
	assert.Equal(t, messages.RoleUser, frame.Role)

	_, err = tr.ReadFrame(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestExitWords(t *testing.T) {
	for _, word := range []string{"exit", "quit", "  QUIT  "} {
		t.Run(word, func(t *testing.T) {
			tr := NewTransport(strings.NewReader(word+"\nnever read\n"), io.Discard)
			defer tr.Close()

			_, err := tr.ReadFrame(context.Background())
			assert.ErrorIs(t, err, relay.ErrClosed)
		})
	}
}

func TestReadFrameHonoursContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	tr := NewTransport(r, io.Discard)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderReply(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &out)
	ctx := context.Background()

	require.NoError(t, tr.WriteFrame(ctx, messages.NewTextFrame("Open")))
	require.NoError(t, tr.WriteFrame(ctx, messages.NewAudioFrame([]byte{1, 2})))
	require.NoError(t, tr.WriteFrame(ctx, messages.NewTextFrame("ing")))
	assert.True(t, tr.Notify(messages.NewSystemFrame("Agent called tool: %s", "press_key")))
	require.NoError(t, tr.WriteFrame(ctx, messages.NewTurnCompleteFrame()))
	require.NoError(t, tr.WriteFrame(ctx, messages.NewTextFrame("Done")))
	require.NoError(t, tr.WriteFrame(ctx, messages.NewTurnCompleteFrame()))
	require.NoError(t, tr.Close())

	assert.Equal(t, "> Agent: Opening\n[Agent called tool: press_key]\n> Agent: Done\n> ", out.String())

	assert.ErrorIs(t, tr.WriteFrame(ctx, messages.NewTextFrame("late")), relay.ErrClosed)
	assert.False(t, tr.Notify(messages.NewTextFrame("late")))
}
