package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/minisoc-labs/minisoc/internal/agent/source"
	"github.com/minisoc-labs/minisoc/internal/config"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose auth-source selection and server reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/agent.example.yaml", "path to agent config YAML")
	return cmd
}

func runDoctor(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("=== minisoc doctor ===")
	fmt.Printf("server_url: %s\n", cfg.Agent.ServerURL)

	if data, err := yaml.Marshal(cfg); err == nil {
		fmt.Println("effective config:")
		fmt.Print(string(data))
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(cfg.Agent.ServerURL + "/health")
	if err != nil {
		fmt.Printf("server /health: FAILED (%v)\n", err)
	} else {
		defer resp.Body.Close()
		fmt.Printf("server /health: %d\n", resp.StatusCode)
	}

	decision := source.Pick(source.OSFs, "", source.PreferAuto, source.DefaultJournalProbe)
	fmt.Printf("auth source decision: kind=%s reason=%q path=%s\n", decision.Kind, decision.Reason, decision.Path)

	for _, candidate := range source.DefaultAuthPathCandidates {
		readable, err := source.Readable(candidate)
		fmt.Printf("candidate: %s readable=%v (%v)\n", candidate, readable, err)
	}

	fmt.Println("=== end ===")
	return nil
}
