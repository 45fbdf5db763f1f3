package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/room4-2/livedesk/console"
	"github.com/room4-2/livedesk/logging"
	"github.com/room4-2/livedesk/session"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var (
		sessionID  string
		promptFile string
		screenshot bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent from this terminal",
		Long:  "Each line typed is sent as a text turn with a fresh screenshot. Type exit or quit to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			// a terminal session is local to this process
			cfg.RedisURL = ""

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			manager, err := newManager(ctx, cfg, promptFile, logging.L())
			if err != nil {
				return err
			}
			defer manager.Shutdown()

			var opts []session.Option
			if screenshot {
				opts = append(opts, session.WithTurnScreenshots())
			}
			transport := console.NewTransport(cmd.InOrStdin(), cmd.OutOrStdout())
			s, err := manager.CreateSession(ctx, sessionID, false, transport, opts...)
			if err != nil {
				_ = transport.Close()
				return err
			}
			return manager.Serve(ctx, s)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "console", "session id")
	cmd.Flags().StringVar(&promptFile, "system-prompt-file", "", "replace the built-in system instruction")
	cmd.Flags().BoolVar(&screenshot, "screenshot", true, "show the model the screen with each command and after its actions")
	return cmd
}
