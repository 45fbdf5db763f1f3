// Command test streams a PCM or WAV file to a running livedesk server and
// plays the spoken reply through sox.
package main

import (
	"encoding/base64"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/logging"
	"github.com/room4-2/livedesk/messages"
)

// AudioPlayer streams 24 kHz PCM via sox
type AudioPlayer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func NewAudioPlayer() (*AudioPlayer, error) {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", "24000",
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &AudioPlayer{cmd: cmd, stdin: stdin}, nil
}

func (p *AudioPlayer) Play(audioData []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	_, _ = p.stdin.Write(audioData)
}

func (p *AudioPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.stdin.Close()
	_ = p.cmd.Wait()
}

func main() {
	serverURL := pflag.String("server", "ws://localhost:8080/ws/audio-test?is_audio=true", "WebSocket session URL")
	audioFile := pflag.String("file", "examples/user.pcm", "16 kHz mono PCM or WAV file to send")
	binary := pflag.Bool("binary", false, "send raw binary messages instead of audio/pcm JSON frames")
	wait := pflag.Duration("wait", 30*time.Second, "how long to wait for the reply")
	pflag.Parse()

	logging.Init(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "test-client"})
	defer logging.Sync()
	logger := logging.L()

	logger.Info("connecting", zap.String("url", *serverURL))
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer conn.Close()

	player, err := NewAudioPlayer()
	if err != nil {
		logger.Fatal("failed to start audio player (is sox installed?)", zap.Error(err))
	}
	defer player.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	turnDone := make(chan struct{}, 1)

	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				logger.Info("read ended", zap.Error(err))
				return
			}
			frame, err := messages.DecodeServerFrame(raw)
			if err != nil {
				logger.Warn("bad frame", zap.Error(err))
				continue
			}

			switch {
			case frame.TurnComplete:
				logger.Info("turn complete")
				select {
				case turnDone <- struct{}{}:
				default:
				}
			case frame.MIMEType == messages.MIMEAudio:
				pcm, err := base64.StdEncoding.DecodeString(frame.Data)
				if err == nil {
					logger.Debug("playing audio", zap.Int("bytes", len(pcm)))
					player.Play(pcm)
				}
			case frame.Role == messages.RoleSystem:
				logger.Info("system", zap.String("text", frame.Data))
			default:
				logger.Info("model", zap.String("text", frame.Data))
			}
		}
	}()

	audioData, err := loadAudioFile(*audioFile)
	if err != nil {
		logger.Fatal("failed to load audio", zap.Error(err))
	}
	logger.Info("sending audio", zap.String("file", *audioFile), zap.Int("bytes", len(audioData)))

	// 100ms chunks at 16kHz, paced like a live microphone
	chunkSize := 3200
	for i := 0; i < len(audioData); i += chunkSize {
		chunk := audioData[i:min(i+chunkSize, len(audioData))]
		if err := sendChunk(conn, chunk, *binary); err != nil {
			logger.Error("send failed", zap.Error(err))
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Info("audio sent, waiting for response")

	select {
	case <-turnDone:
	case <-done:
	case <-interrupt:
		logger.Info("interrupted")
	case <-time.After(*wait):
		logger.Warn("timeout waiting for response")
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func sendChunk(conn *websocket.Conn, chunk []byte, binary bool) error {
	if binary {
		return conn.WriteMessage(websocket.BinaryMessage, chunk)
	}
	frame, err := messages.AudioFrameFromPCM(chunk)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// loadAudioFile returns raw PCM, skipping a standard 44-byte WAV header
func loadAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		return data[44:], nil
	}
	return data, nil
}
