package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/config"
	"github.com/room4-2/livedesk/desktop"
	"github.com/room4-2/livedesk/gemini"
	"github.com/room4-2/livedesk/logging"
	"github.com/room4-2/livedesk/screen"
	"github.com/room4-2/livedesk/server"
	"github.com/room4-2/livedesk/session"
	"github.com/room4-2/livedesk/shell"
)

const shutdownTimeout = 10 * time.Second

// newBackend connects to the model provider. Swapped in tests.
var newBackend = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Connector, desktop.Vision, error) {
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LiveModel, cfg.VoiceName, logger)
	if err != nil {
		return nil, nil, err
	}
	return session.GeminiConnector(client), client.Vision(cfg.VisionModel), nil
}

// newRunner runs desktop programs. Swapped in tests.
var newRunner = func() shell.Runner { return shell.NewExecRunner() }

// newManager builds the session manager with a fresh toolset per session
func newManager(ctx context.Context, cfg *config.Config, promptFile string, logger *zap.Logger) (*session.Manager, error) {
	connector, vision, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}

	runner := newRunner()
	toolsets := func() *desktop.Toolset {
		return desktop.New(runner, screen.NewCapturer(runner, cfg.Screen), vision, logger)
	}

	manager, err := session.NewManager(cfg, connector, toolsets, logger)
	if err != nil {
		return nil, err
	}
	if promptFile != "" {
		prompt, err := os.ReadFile(promptFile)
		if err != nil {
			manager.Shutdown()
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		manager.SetSystemPrompt(string(prompt))
	}
	return manager, nil
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		port       int
		promptFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the WebSocket endpoint and browser client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if port > 0 {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg, promptFile)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides PORT)")
	cmd.Flags().StringVar(&promptFile, "system-prompt-file", "", "replace the built-in system instruction")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, promptFile string) error {
	logger := logging.L()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := newManager(ctx, cfg, promptFile, logger)
	if err != nil {
		return err
	}
	go manager.StartCleanupRoutine(ctx)

	srv := server.NewServerWebsocket(cfg, manager, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		manager.Shutdown()
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
