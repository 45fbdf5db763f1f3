package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/livedesk/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	mu       sync.Mutex
	contents []genai.LiveClientContentInput
	realtime []genai.LiveRealtimeInput
	tools    []genai.LiveToolResponseInput

	incoming chan *genai.LiveServerMessage
	recvErr  error
	done     chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan *genai.LiveServerMessage, 8), done: make(chan struct{})}
}

func (c *fakeConn) SendClientContent(in genai.LiveClientContentInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contents = append(c.contents, in)
	return nil
}

func (c *fakeConn) SendRealtimeInput(in genai.LiveRealtimeInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.realtime = append(c.realtime, in)
	return nil
}

func (c *fakeConn) SendToolResponse(in genai.LiveToolResponseInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = append(c.tools, in)
	return nil
}

func (c *fakeConn) Receive() (*genai.LiveServerMessage, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			return nil, c.recvErr
		}
		return msg, nil
	case <-c.done:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func TestSendContent(t *testing.T) {
	conn := newFakeConn()
	p := newProxy(conn, false, zap.NewNop())

	require.NoError(t, p.SendContent(context.Background(), relay.Content{
		Role:  "system",
		Text:  "[SYSTEM] Here is the screenshot",
		Media: []relay.Blob{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	}))
	require.NoError(t, p.SendContent(context.Background(), relay.Content{Role: "user"}))

	require.Len(t, conn.contents, 1)
	in := conn.contents[0]
	require.NotNil(t, in.TurnComplete)
	assert.True(t, *in.TurnComplete)
	require.Len(t, in.Turns, 1)
	assert.Equal(t, genai.RoleUser, in.Turns[0].Role)
	require.Len(t, in.Turns[0].Parts, 2)
	assert.Equal(t, "[SYSTEM] Here is the screenshot", in.Turns[0].Parts[0].Text)
	assert.Equal(t, "image/jpeg", in.Turns[0].Parts[1].InlineData.MIMEType)
}

func TestSendRealtimeAndTools(t *testing.T) {
	conn := newFakeConn()
	p := newProxy(conn, true, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.SendRealtimeAudio(ctx, []byte{1, 2}))
	require.NoError(t, p.SendRealtimeAudio(ctx, nil))
	require.NoError(t, p.SendVideoFrame(ctx, []byte{3}))
	require.NoError(t, p.SendToolResult(ctx, relay.ToolResult{
		Name: "press_key", ID: "t1", Response: map[string]any{"status": "success"},
	}))

	require.Len(t, conn.realtime, 2)
	assert.Equal(t, inputAudioMIME, conn.realtime[0].Audio.MIMEType)
	assert.Equal(t, []byte{1, 2}, conn.realtime[0].Audio.Data)
	assert.Equal(t, "image/jpeg", conn.realtime[1].Video.MIMEType)

	require.Len(t, conn.tools, 1)
	fr := conn.tools[0].FunctionResponses[0]
	assert.Equal(t, "t1", fr.ID)
	assert.Equal(t, "press_key", fr.Name)
	assert.Equal(t, map[string]any{"status": "success"}, fr.Response)
}

func TestSendAfterClose(t *testing.T) {
	conn := newFakeConn()
	p := newProxy(conn, false, zap.NewNop())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.SendContent(context.Background(), relay.Content{Text: "hi"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.SendToolResult(context.Background(), relay.ToolResult{}), ErrClosed)
}

func TestEventsStream(t *testing.T) {
	conn := newFakeConn()
	p := newProxy(conn, false, zap.NewNop())

	conn.incoming <- &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}
	conn.incoming <- &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: genai.NewContentFromText("Opening", genai.RoleModel),
	}}
	conn.incoming <- &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{TurnComplete: true}}
	conn.recvErr = errors.New("connection reset")
	close(conn.incoming)

	var events []*relay.Event
	var streamErr error
	for ev, err := range p.Events(context.Background()) {
		if err != nil {
			streamErr = err
			break
		}
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "Opening", events[0].Text)
	assert.True(t, events[1].TurnComplete)
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "connection reset")
}

func TestEventsStopOnCancel(t *testing.T) {
	conn := newFakeConn()
	p := newProxy(conn, false, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int)
	go func() {
		n := 0
		for _, err := range p.Events(ctx) {
			if err != nil {
				n = -1
				break
			}
			n++
		}
		done <- n
	}()

	cancel()
	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(5 * time.Second):
		t.Fatal("events did not stop")
	}
	assert.ErrorIs(t, p.SendRealtimeAudio(context.Background(), []byte{1}), ErrClosed)
}

func TestToEvent(t *testing.T) {
	tests := []struct {
		name  string
		msg   *genai.LiveServerMessage
		audio bool
		want  *relay.Event
	}{
		{
			name: "nil",
			msg:  nil,
		},
		{
			name: "setup only",
			msg:  &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}},
		},
		{
			name: "text parts joined, thoughts dropped",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{
					{Text: "planning", Thought: true},
					{Text: "Open"},
					{Text: "ing"},
				}},
			}},
			want: &relay.Event{Text: "Opening"},
		},
		{
			name: "audio chunks with transcription",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{
					{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{1}}},
					{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{2}}},
				}},
				OutputTranscription: &genai.Transcription{Text: "Sure"},
			}},
			audio: true,
			want: &relay.Event{
				Text:  "Sure",
				Audio: &relay.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{1, 2}},
			},
		},
		{
			name: "transcription ignored in text mode",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				OutputTranscription: &genai.Transcription{Text: "Sure"},
				TurnComplete:        true,
			}},
			want: &relay.Event{TurnComplete: true},
		},
		{
			name: "tool calls",
			msg: &genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{FunctionCalls: []*genai.FunctionCall{
				{ID: "t1", Name: "press_key", Args: map[string]any{"key": "enter"}},
				{ID: "t2", Name: "capture_screen"},
			}}},
			want: &relay.Event{ToolCalls: []relay.ToolCall{
				{Name: "press_key", ID: "t1", Args: map[string]any{"key": "enter"}},
				{Name: "capture_screen", ID: "t2", Args: map[string]any{}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toEvent(tt.msg, tt.audio))
		})
	}
}

func TestLiveConfig(t *testing.T) {
	tools := []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "press_key"}}}}

	text := liveConfig("Zephyr", ConnectOptions{SystemPrompt: "be brief", Tools: tools})
	assert.Equal(t, []genai.Modality{genai.ModalityText}, text.ResponseModalities)
	assert.Nil(t, text.SpeechConfig)
	assert.Nil(t, text.OutputAudioTranscription)
	assert.Equal(t, "be brief", text.SystemInstruction.Parts[0].Text)
	assert.Equal(t, tools, text.Tools)

	audio := liveConfig("Zephyr", ConnectOptions{Audio: true})
	assert.Equal(t, []genai.Modality{genai.ModalityAudio}, audio.ResponseModalities)
	assert.Equal(t, "Zephyr", audio.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.NotNil(t, audio.OutputAudioTranscription)
	assert.Nil(t, audio.SystemInstruction)
}

func TestLiveRole(t *testing.T) {
	assert.Equal(t, genai.Role(genai.RoleModel), liveRole("model"))
	assert.Equal(t, genai.Role(genai.RoleUser), liveRole("user"))
	assert.Equal(t, genai.Role(genai.RoleUser), liveRole("system"))
}
