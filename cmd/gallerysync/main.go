package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	// Credentials may live in a .env file next to the binary.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gallerysync",
		Short: "Ingest community media listings into a local gallery database",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(syncCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statsCmd())

	return root
}

func syncCmd() *cobra.Command {
	var subsFile string

	cmd := &cobra.Command{
		Use:   "sync [community ...]",
		Short: "Sync named communities now, or all active ones when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(args, subsFile)
		},
	}

	cmd.Flags().StringVar(&subsFile, "file", "", `JSON file with {"subs": [...]} to register and sync`)
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}
