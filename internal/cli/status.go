package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnsengimana/autonomous-teams/internal/config"
	"github.com/tnsengimana/autonomous-teams/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("📊 teamd Status")
		fmt.Printf("Version: %s\n", version)

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:  ✗ Unable to load:", err)
			return nil
		}
		fmt.Println("DB:      " + cfg.DBPath)
		if cfg.Provider.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found (set TEAMD_API_KEY)")
		}
		if cfg.Slack.Token != "" {
			fmt.Println("Slack:   ✓ Enabled (" + cfg.Slack.Channel + ")")
		} else {
			fmt.Println("Slack:   ✗ Disabled, briefings go to the log")
		}

		s, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Println("Store:   ✗", err)
			return nil
		}
		defer s.Close()

		agents, err := s.ListAgents()
		if err != nil {
			return err
		}
		fmt.Printf("Agents:  %d\n", len(agents))
		for _, a := range agents {
			qs, err := s.QueueStatus(a.ID)
			if err != nil {
				return err
			}
			fmt.Printf("  %-20s %-8s pending=%d in_progress=%d backoff=%d\n",
				a.Name, a.Status, qs.Pending, qs.InProgress, a.BackoffAttempts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
