// Package cli wires MiniSOC's subcommand surface to the
// internal packages. Commands are thin: load config, construct the
// exported types, call their methods. No detection/parsing/storage logic
// lives here.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRoot builds the minisocd root command and all of its subcommands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "minisocd",
		Short:         "MiniSOC: a small, self-hosted home-lab SIEM pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServerCmd(),
		newAgentTailAuthCmd(),
		newReplayCmd(),
		newQueryCmd(),
		newAlertsCmd(),
		newDoctorCmd(),
	)
	return root
}
