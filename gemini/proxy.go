// Package gemini adapts the Gemini Live API to the relay's model session.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/livedesk/relay"
)

// ErrClosed is returned when sending on a closed proxy
var ErrClosed = errors.New("gemini session closed")

const inputAudioMIME = "audio/pcm;rate=16000"

// liveConn is the subset of *genai.Session the proxy uses
type liveConn interface {
	SendClientContent(input genai.LiveClientContentInput) error
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Client creates Live sessions against one model and voice
type Client struct {
	genai  *genai.Client
	model  string
	voice  string
	logger *zap.Logger
}

// NewClient creates the GenAI client. No connection is opened yet.
func NewClient(ctx context.Context, apiKey, model, voice string, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{genai: client, model: model, voice: voice, logger: logger.Named("gemini")}, nil
}

// ConnectOptions describes one Live session
type ConnectOptions struct {
	Audio        bool
	SystemPrompt string
	Tools        []*genai.Tool
}

// Connect opens a Live session in TEXT or AUDIO modality
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) (*Proxy, error) {
	session, err := c.genai.Live.Connect(ctx, c.model, liveConfig(c.voice, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Live API: %w", err)
	}
	c.logger.Info("connected to Gemini Live", zap.String("model", c.model), zap.Bool("audio", opts.Audio))
	return newProxy(session, opts.Audio, c.logger), nil
}

// Vision returns an analyzer bound to the given model
func (c *Client) Vision(model string) *Analyzer {
	return &Analyzer{models: c.genai.Models, model: model}
}

func liveConfig(voice string, opts ConnectOptions) *genai.LiveConnectConfig {
	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
		Tools:              opts.Tools,
	}
	if opts.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	if opts.Audio {
		config.ResponseModalities = []genai.Modality{genai.ModalityAudio}
		config.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
		// transcripts let the client show what was said
		config.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return config
}

// Proxy is one Live session. Sends are serialized; the underlying
// websocket allows a single writer.
type Proxy struct {
	conn   liveConn
	audio  bool
	logger *zap.Logger

	sendMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newProxy(conn liveConn, audio bool, logger *zap.Logger) *Proxy {
	return &Proxy{conn: conn, audio: audio, logger: logger}
}

func (p *Proxy) send(what string, fn func() error) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return fmt.Errorf("failed to send %s: %w", what, err)
	}
	return nil
}

// SendContent sends one complete user turn
func (p *Proxy) SendContent(_ context.Context, content relay.Content) error {
	parts := make([]*genai.Part, 0, len(content.Media)+1)
	if content.Text != "" {
		parts = append(parts, genai.NewPartFromText(content.Text))
	}
	for _, m := range content.Media {
		parts = append(parts, genai.NewPartFromBytes(m.Data, m.MIMEType))
	}
	if len(parts) == 0 {
		return nil
	}

	turnComplete := true
	err := p.send("content", func() error {
		return p.conn.SendClientContent(genai.LiveClientContentInput{
			Turns:        []*genai.Content{genai.NewContentFromParts(parts, liveRole(content.Role))},
			TurnComplete: &turnComplete,
		})
	})
	if err == nil {
		p.logger.Debug("sent content", zap.Int("parts", len(parts)), zap.Int("text_len", len(content.Text)))
	}
	return err
}

// SendRealtimeAudio streams one chunk of 16 kHz PCM
func (p *Proxy) SendRealtimeAudio(_ context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return p.send("audio", func() error {
		return p.conn.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{MIMEType: inputAudioMIME, Data: pcm},
		})
	})
}

// SendVideoFrame streams one JPEG screen frame
func (p *Proxy) SendVideoFrame(_ context.Context, jpeg []byte) error {
	return p.send("video frame", func() error {
		return p.conn.SendRealtimeInput(genai.LiveRealtimeInput{
			Video: &genai.Blob{MIMEType: "image/jpeg", Data: jpeg},
		})
	})
}

// SendToolResult answers one function call
func (p *Proxy) SendToolResult(_ context.Context, result relay.ToolResult) error {
	err := p.send("tool response", func() error {
		return p.conn.SendToolResponse(genai.LiveToolResponseInput{
			FunctionResponses: []*genai.FunctionResponse{{
				ID:       result.ID,
				Name:     result.Name,
				Response: result.Response,
			}},
		})
	})
	if err == nil {
		p.logger.Debug("sent tool response", zap.String("tool", result.Name), zap.String("call_id", result.ID))
	}
	return err
}

// Events yields model output. Cancelling ctx closes the session, which
// unblocks the pending Receive.
func (p *Proxy) Events(ctx context.Context) iter.Seq2[*relay.Event, error] {
	return func(yield func(*relay.Event, error) bool) {
		stop := context.AfterFunc(ctx, func() { _ = p.Close() })
		defer stop()

		for {
			msg, err := p.conn.Receive()
			if err != nil {
				if ctx.Err() != nil || p.closed.Load() {
					return
				}
				p.logger.Error("receive failed", zap.Error(err))
				yield(nil, fmt.Errorf("receive: %w", err))
				return
			}
			if msg.GoAway != nil {
				p.logger.Warn("server going away", zap.Duration("time_left", msg.GoAway.TimeLeft))
			}
			event := toEvent(msg, p.audio)
			if event == nil {
				continue
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

// Close terminates the session. Safe to call more than once.
func (p *Proxy) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}

// toEvent flattens one server message. Thought parts are dropped. In audio
// mode the output transcription carries the text.
func toEvent(msg *genai.LiveServerMessage, audio bool) *relay.Event {
	if msg == nil {
		return nil
	}
	event := &relay.Event{}

	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			event.ToolCalls = append(event.ToolCalls, relay.ToolCall{Name: fc.Name, ID: fc.ID, Args: args})
		}
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.Text != "" && !audio {
					event.Text += part.Text
				}
				if blob := part.InlineData; blob != nil && len(blob.Data) > 0 {
					if event.Audio == nil {
						event.Audio = &relay.Blob{MIMEType: blob.MIMEType}
					}
					event.Audio.Data = append(event.Audio.Data, blob.Data...)
				}
			}
		}
		if audio && sc.OutputTranscription != nil {
			event.Text += sc.OutputTranscription.Text
		}
		event.TurnComplete = sc.TurnComplete
	}

	if event.Empty() {
		return nil
	}
	return event
}

// liveRole maps frame roles onto the two roles the Live API accepts
func liveRole(role string) genai.Role {
	if role == genai.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}
