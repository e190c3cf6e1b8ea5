package main

import (
	"fmt"
	"os"

	"github.com/E-837/ad-ops-command-center-sub002/internal/cli"
	"github.com/E-837/ad-ops-command-center-sub002/internal/config"
	internal_http "github.com/E-837/ad-ops-command-center-sub002/internal/http"
	"github.com/E-837/ad-ops-command-center-sub002/internal/log"
	internal_storage "github.com/E-837/ad-ops-command-center-sub002/internal/storage"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/checkpoint"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/registry"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/workflows"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "adops"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the command center API server",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.GetLogger()

		cfg, err := config.Load()
		if err != nil {
			logger.Errorf("Failed to load configuration: %v", err)
			os.Exit(1)
		}

		store, err := internal_storage.InitStore(cfg.DatabaseURL)
		if err != nil {
			logger.Errorf("Failed to initialize store: %v", err)
			os.Exit(1)
		}
		defer store.Close()

		checkpoints, err := checkpoint.NewFileStore(cfg.CheckpointDir)
		if err != nil {
			logger.Errorf("Failed to initialize checkpoint store: %v", err)
			os.Exit(1)
		}

		eng := engine.NewEngine(registry.NewRegistry(logger), checkpoints, engine.NewEmitter(logger), store, logger)
		if err := workflows.RegisterAll(eng); err != nil {
			logger.Errorf("Failed to register workflows: %v", err)
			os.Exit(1)
		}

		if err := internal_http.StartServer(cfg.Port, eng, store); err != nil {
			logger.Errorf("Server stopped: %v", err)
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
