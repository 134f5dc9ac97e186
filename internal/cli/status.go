package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Voxhall status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Voxhall %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			if cfg.Chat.ServiceURL != "" {
				fmt.Printf("Chat:    %s (user %s)\n", cfg.Chat.ServiceURL, cfg.Chat.UserID)
			} else {
				fmt.Println("Chat:    not configured")
			}
			fmt.Println()

			// Probe a locally running server, if any.
			client := &http.Client{Timeout: 2 * time.Second}
			url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
			resp, err := client.Get(url)
			if err != nil {
				fmt.Println("Status:  not running")
				return nil
			}
			defer resp.Body.Close()

			var health struct {
				Status  string `json:"status"`
				Version string `json:"version"`
				Clients int    `json:"clients"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				fmt.Println("Status:  running (unreadable health response)")
				return nil
			}
			fmt.Printf("Status:  running version=%s clients=%d\n", health.Version, health.Clients)
			return nil
		},
	}
}
