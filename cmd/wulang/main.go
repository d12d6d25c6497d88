package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/db"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "wulang",
	Short: "wulang - WhatsApp assistant backed by a generative-language backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, connect to WhatsApp, and process messages",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := db.Migrate(cfg.Postgres); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func loadConfig() (config.Config, error) {
	path := configFlag
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
