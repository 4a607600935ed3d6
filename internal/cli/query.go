package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minisoc-labs/minisoc/internal/config"
	"github.com/minisoc-labs/minisoc/internal/server/storage"
)

func newQueryCmd() *cobra.Command {
	var (
		cfgPath string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the most recent stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := storage.Open(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			events, err := store.RecentEvents(limit)
			if err != nil {
				return fmt.Errorf("query recent events: %w", err)
			}
			for _, ev := range events {
				fmt.Printf("%s %s %s.%s %s sev=%d :: %s\n",
					ev.Ts, ev.Host.Name, ev.Event.Type, ev.Event.Action, ev.Event.Outcome, ev.Event.Severity, ev.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/server.example.yaml", "path to server config YAML")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to print")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	var (
		cfgPath string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the most recent stored alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := storage.Open(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			alerts, err := store.RecentAlerts(limit)
			if err != nil {
				return fmt.Errorf("query recent alerts: %w", err)
			}
			for _, a := range alerts {
				fmt.Printf("%s %s sev=%d %s :: %s (events=%d)\n",
					a.Ts, a.RuleID, a.Severity, a.Entity, a.Title, len(a.EventIDs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/server.example.yaml", "path to server config YAML")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to print")
	return cmd
}
