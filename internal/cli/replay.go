package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minisoc-labs/minisoc/internal/agent/transport"
	"github.com/minisoc-labs/minisoc/internal/config"
	"github.com/minisoc-labs/minisoc/internal/logging"
	"github.com/minisoc-labs/minisoc/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var (
		cfgPath  string
		scenario string
		delayS   float64
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded JSONL scenario against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logging.New("minisoc-replay", cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			client := transport.New(cfg.Agent.ServerURL)
			res, err := replay.Run(cmd.Context(), client, scenario, time.Duration(delayS*float64(time.Second)))
			if err != nil {
				return fmt.Errorf("replay %s: %w", scenario, err)
			}
			fmt.Printf("replay: sent=%d failed=%d\n", res.Sent, res.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/agent.example.yaml", "path to agent config YAML")
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "data/replay_scenarios/01_ssh_bruteforce.jsonl", "path to a JSONL scenario file")
	cmd.Flags().Float64Var(&delayS, "delay-s", 0.02, "delay between events, in seconds")

	return cmd
}
