// Command llmwf is the admin CLI: schema migration, demo seeding and manual
// usage aggregation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/llm-workflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "llmwf",
	Short: "Admin tasks for the LLM workflow backend",
	Long: `llmwf runs maintenance tasks against the database configured by the
same environment variables as the server (DB_DRIVER, DB_DSN, ...).`,
	SilenceUsage: true,
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(cmd.Context())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
