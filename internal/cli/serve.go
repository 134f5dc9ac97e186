package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/voxhall/voxhall/internal/chat"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/gateway"
	"github.com/voxhall/voxhall/internal/store"
	"github.com/voxhall/voxhall/internal/transport"
	"github.com/voxhall/voxhall/internal/view"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Voxhall server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if cfg.Chat.ServiceURL == "" {
				return fmt.Errorf("chat.serviceUrl is required (set it in %s or via VOXHALL_CHAT_URL)", paths.Config)
			}
			if cfg.Chat.UserID == "" {
				return fmt.Errorf("chat.userId is required (set it in %s or via VOXHALL_USER_ID)", paths.Config)
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			dbPath := paths.DatabasePath(cfg)
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			conversations := store.NewConversationStore(db)
			log.Info().Str("path", dbPath).Msg("conversation store ready")

			state := view.NewState(log)
			client := transport.NewSSEClient(cfg.Chat.ServiceURL, cfg.Chat.APIKey, log)

			orch := chat.NewOrchestrator(chat.Params{
				Transport: client,
				Store:     conversations,
				State:     state,
				UserID:    cfg.Chat.UserID,
				OnExternalID: func(externalID string) {
					log.Info().Str("externalId", externalID).Msg("conversation resolved")
				},
				Log: log,
			})

			srv := gateway.New(cfg, orch, state, conversations, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback)")

	return cmd
}
