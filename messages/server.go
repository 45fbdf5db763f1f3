package messages

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// ServerFrame represents a frame sent to the frontend client.
// A turn-complete marker carries only TurnComplete.
type ServerFrame struct {
	MIMEType     string `json:"mime_type,omitempty"`
	Data         string `json:"data,omitempty"`
	Role         string `json:"role,omitempty"`
	TurnComplete bool   `json:"turn_complete,omitempty"`
}

// NewTextFrame creates a text frame from the model
func NewTextFrame(text string) *ServerFrame {
	return &ServerFrame{MIMEType: MIMEText, Data: text, Role: RoleModel}
}

// NewAudioFrame creates an audio frame from raw PCM bytes
func NewAudioFrame(pcm []byte) *ServerFrame {
	return &ServerFrame{
		MIMEType: MIMEAudio,
		Data:     base64.StdEncoding.EncodeToString(pcm),
		Role:     RoleModel,
	}
}

// NewSystemFrame creates a diagnostic or notice frame
func NewSystemFrame(format string, args ...any) *ServerFrame {
	return &ServerFrame{MIMEType: MIMEText, Data: fmt.Sprintf(format, args...), Role: RoleSystem}
}

// NewTurnCompleteFrame creates the end-of-turn marker
func NewTurnCompleteFrame() *ServerFrame {
	return &ServerFrame{TurnComplete: true}
}

// Encode serializes a frame for the wire
func Encode(frame *ServerFrame) ([]byte, error) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeServerFrame parses a frame produced by Encode. Used by clients.
func DecodeServerFrame(raw []byte) (*ServerFrame, error) {
	var frame ServerFrame
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid server frame: %w", err)
	}
	return &frame, nil
}
