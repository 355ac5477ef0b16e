package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agritrace",
		Short: "Agricultural batch tracking",
		Long:  `agritrace tracks agricultural batches through the supply chain, anchoring every status change on an EVM ledger`,
	}
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMonitorCmd())
	rootCmd.AddCommand(NewDraftCmd())
	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
