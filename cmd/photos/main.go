package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vetlink/vetlink/cmd/photos/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "photos",
		Short:         "Maintenance tools for stored profile photos and feed images",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.VerifyCmd())
	rootCmd.AddCommand(cmd.SweepCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
