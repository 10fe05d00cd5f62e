// Command organize is the single-file CLI driver: it organizes one file
// (or re-analyzes an already-catalogued one) and exits.
//
// Exit codes: 0 success, 1 unrecoverable error, 130 interrupted (SIGINT) —
// the usual shell convention for a one-shot CLI, as opposed to a
// long-running daemon's open-ended exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aios/organizer/internal/catalog"
	"github.com/aios/organizer/internal/chatprovider"
	"github.com/aios/organizer/internal/extractor"
	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/pipeline"
	"github.com/aios/organizer/internal/sidecar"
	"github.com/aios/organizer/internal/telemetry"
	"github.com/aios/organizer/internal/template"
	"github.com/aios/organizer/pkg/config"
	"github.com/aios/organizer/pkg/database"
)

func main() {
	var configDir, templateID, reanalyzeID string

	rootCmd := &cobra.Command{
		Use:   "organize [path]",
		Short: "Organize a single file through the configured templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reanalyzeID == "" && len(args) != 1 {
				return errors.New("organize: provide a file path, or --reanalyze <file-id>")
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd.Context(), configDir, path, templateID, reanalyzeID)
		},
	}

	rootCmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding the config file and templates (default $HOME/.organizer)")
	rootCmd.Flags().StringVar(&templateID, "template", "", "explicit template id to organize into (default: let analysis pick one)")
	rootCmd.Flags().StringVar(&reanalyzeID, "reanalyze", "", "re-run analysis on an already-catalogued file id instead of organizing a new path")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "organize: interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "organize:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir, path, templateID, reanalyzeID string) error {
	logger := telemetry.NewLogger("info", "text")

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

	var outcome *pipeline.Outcome
	if reanalyzeID != "" {
		outcome, err = p.Reanalyze(ctx, reanalyzeID)
	} else {
		outcome, err = p.Organize(ctx, path, templateID)
	}
	if err != nil {
		var orgErr *orgerrors.Error
		if errors.As(err, &orgErr) {
			return fmt.Errorf("%s: %w", orgErr.Kind(), err)
		}
		return err
	}

	fmt.Printf("organized: %s -> %s (template=%s, version=%d)\n", path, outcome.Path, outcome.File.TemplateID, outcome.File.Version)
	return nil
}
