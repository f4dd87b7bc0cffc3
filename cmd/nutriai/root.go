package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/config"
	"github.com/vbonduro/nutriai/internal/db"
	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/gateway"
	"github.com/vbonduro/nutriai/internal/logging"
	"github.com/vbonduro/nutriai/internal/store"
	"github.com/vbonduro/nutriai/internal/telemetry"
)

const serviceName = "nutriai"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	provider   string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "nutriai",
		Short: "Recipes, calorie estimates and training plans from OpenAI, Gemini or DeepSeek",
		Long: `nutriai sends nutrition and fitness requests to an AI provider and records
every call in an audit log.

Examples:
  nutriai recipes "high protein vegetarian dinner"
  nutriai calories lunch.jpg --note "half portion"
  nutriai calories --text "two slices of pepperoni pizza"
  nutriai plan --goal "run a 5k" --weeks 6
  nutriai serve`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is normal.
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default ./"+config.DefaultFile+" when present)")
	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "provider for this run: openai, gemini or deepseek")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(
		newServeCmd(opts),
		newRecipesCmd(opts),
		newCaloriesCmd(opts),
		newPlanCmd(opts),
		newTextCmd(opts),
		newLogsCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// app is everything a command needs, built from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	gateway  *gateway.Gateway
	logs     audit.Log
	provider domain.Provider
	cleanup  []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.provider != "" {
		p, err := domain.ParseProvider(o.provider)
		if err != nil {
			return nil, err
		}
		cfg.DefaultProvider = string(p)
	}
	return cfg, nil
}

func (o *rootOptions) newApp() (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logCleanup, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, provider: cfg.Provider(), cleanup: []func(){logCleanup}}

	if cfg.Tracing {
		shutdown, err := telemetry.InitTracer(serviceName, os.Stderr, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shut down tracer", "error", err)
			}
		})
	}

	if cfg.DBPath == "" {
		a.logs = audit.NewMemory()
	} else {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			a.close()
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() { closeDB(database, logger) })
		a.logs = store.NewAILogStore(database)
	}

	gwOpts := append(cfg.GatewayOptions(), gateway.WithLogger(logger))
	a.gateway = gateway.New(cfg, a.logs, gwOpts...)
	return a, nil
}

func closeDB(database *sql.DB, logger *slog.Logger) {
	if err := database.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
