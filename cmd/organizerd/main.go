// Command organizerd is the organizer daemon: it watches every template's
// base path and feeds new files through the Organization Pipeline, exposing
// health, metrics, and a websocket activity feed.
//
// A cobra root command binds flags through viper, runDaemon builds the
// collaborators and starts the Server, and the main goroutine blocks on
// SIGINT/SIGTERM before a timed graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/daemon"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/pipeline"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/telemetry"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/pkg/config"
	"github.com/aios/organizer/pkg/database"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "organizerd",
		Short: "File Organizer daemon",
		Long:  "Watches template directories and auto-organizes new files as they arrive.",
		RunE:  runDaemon,
	}

	rootCmd.Flags().String("config-dir", "", "directory holding the config file and templates (default $HOME/.organizer)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "organizerd:", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := telemetry.NewLogger(viper.GetString("log-level"), "json")

	configDir := viper.GetString("config-dir")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = home + "/.organizer"
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry, err := template.NewRegistry(configDir, logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	db, err := database.NewConnection(database.Config{Path: configDir + "/catalog.db"})
	if err != nil {
		return fmt.Errorf("connecting to catalog: %w", err)
	}
	defer db.Close()

	repo, err := catalog.New(db, logger)
	if err != nil {
		return fmt.Errorf("initializing catalog: %w", err)
	}

	provider, err := chatprovider.New(chatprovider.Config{
		Variant: chatprovider.Variant(cfg.LLMProvider()),
		Model:   cfg.LLMModel(),
		BaseURL: cfg.LLMBaseURL(),
		APIKey:  cfg.APIKey(cfg.LLMProvider()),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("initializing chat provider: %w", err)
	}

	p := pipeline.New(pipeline.Deps{
		Config:    cfg,
		Provider:  provider,
		Extractor: extractor.New(extractor.Collaborators{}, cfg.MaxContentWords(), logger),
		Templates: registry,
		Catalog:   repo,
		Sidecar:   sidecar.NewFile(),
		Logger:    logger,
	})

	coordinator := daemon.New(cfg, registry, repo, p, logger, daemon.Options{})
	server := daemon.NewServer(cfg, coordinator, logger)
	server.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- coordinator.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var coordinatorErr error
	coordinatorStopped := false
	select {
	case <-sigChan:
		logger.Info("shutting down organizerd...")
	case coordinatorErr = <-runErr:
		coordinatorStopped = true
		if coordinatorErr != nil {
			logger.WithError(coordinatorErr).Error("coordinator stopped")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("error shutting down http/metrics servers")
	}

	if !coordinatorStopped {
		<-runErr
	}
	logger.Info("organizerd shutdown complete")
	return coordinatorErr
}
