package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/llm-workflow/internal/app"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update all tables, indexes and foreign keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app.OpenDB(cfg)
		fmt.Printf("migrated %s database\n", cfg.DBDriver)
		return nil
	},
}
