package messages

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// MIME types understood on the wire
const (
	MIMEText  = "text/plain"
	MIMEAudio = "audio/pcm"
)

// Roles carried on frames
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// ClientFrame represents a frame from the frontend client
type ClientFrame struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
	Role     string `json:"role,omitempty"`
}

// DecodeClientFrame parses one inbound frame. Role defaults to "user".
func DecodeClientFrame(raw []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if frame.Role == "" {
		frame.Role = RoleUser
	}
	return &frame, nil
}

// AudioFrameFromPCM wraps raw PCM bytes (e.g. a binary websocket message)
// into the JSON form of an audio/pcm client frame.
func AudioFrameFromPCM(pcm []byte) ([]byte, error) {
	return sonic.Marshal(ClientFrame{
		MIMEType: MIMEAudio,
		Data:     base64.StdEncoding.EncodeToString(pcm),
		Role:     RoleUser,
	})
}

// TextFrame builds the JSON form of a text/plain client frame.
func TextFrame(text string) ([]byte, error) {
	return sonic.Marshal(ClientFrame{MIMEType: MIMEText, Data: text, Role: RoleUser})
}
