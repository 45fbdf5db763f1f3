// Command test-text sends one text prompt straight to the live model and
// prints the reply. It needs GEMINI_API_KEY.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/gemini"
	"github.com/room4-2/livedesk/logging"
	"github.com/room4-2/livedesk/relay"
)

func main() {
	prompt := pflag.String("prompt", "Hello! Say hi back in one sentence.", "text to send")
	timeout := pflag.Duration("timeout", 30*time.Second, "give up after this long")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.L().Fatal("load config", zap.Error(err))
	}
	logging.Init(cfg.Logger)
	defer logging.Sync()
	logger := logging.L()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LiveModel, cfg.VoiceName, logger)
	if err != nil {
		logger.Fatal("create client", zap.Error(err))
	}
	proxy, err := client.Connect(ctx, gemini.ConnectOptions{
		SystemPrompt: "You are a helpful assistant. Keep responses brief.",
	})
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer proxy.Close()

	if err := proxy.SendContent(ctx, relay.Content{Role: "user", Text: *prompt}); err != nil {
		logger.Fatal("send text", zap.Error(err))
	}

	var reply strings.Builder
	for ev, err := range proxy.Events(ctx) {
		if err != nil {
			logger.Fatal("receive", zap.Error(err))
		}
		reply.WriteString(ev.Text)
		if ev.TurnComplete {
			break
		}
	}
	logger.Info("reply", zap.String("text", reply.String()))
}
