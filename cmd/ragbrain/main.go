// Ragbrain serves retrieval-augmented chat over a remote generation
// gateway, grounding replies in the caller's past turns and the tenant's
// documents.
//
// Configuration comes from defaults, an optional YAML file (--config or
// RAGBRAIN_CONFIG) and RAGBRAIN_* environment variables. A .env file in
// the working directory is loaded first when present.
//
// Usage:
//
//	ragbrain serve
//	ragbrain migrate
//	ragbrain ingest --business acme --title "Opening hours" hours.md
//	ragbrain version
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "ragbrain",
	Short: "Retrieval-augmented chat service",
	Long: `ragbrain answers chat messages through a generation gateway, grounding
each reply in the user's prior conversation and the tenant's documents.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFiles(envFiles)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RAGBRAIN_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env when present)")
	rootCmd.AddCommand(serveCmd, migrateCmd, ingestCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads dotenv files without overriding variables already
// set. With no explicit files, .env is loaded if it exists.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ragbrain by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}
