// Package cmd implements the flowstate command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/config"
	"github.com/zjrosen/flowstate/internal/infrastructure/sqlite"
	"github.com/zjrosen/flowstate/internal/log"
	"github.com/zjrosen/flowstate/internal/telemetry"
	"github.com/zjrosen/flowstate/internal/workflows/definition"
	"github.com/zjrosen/flowstate/internal/workflows/engine"
)

var (
	cfgPath  string
	logLevel string

	cfg config.Config

	tracingShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "flowstate",
	Short: "Workflow engine with an append-only transition ledger",
	Long: `flowstate runs finite-state workflows against opaque subjects.
Definitions are validated graphs, every transition is recorded in an
append-only ledger, and history can be replayed as of any point in time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyLogLevel(logLevel); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		tracingShutdown, err = telemetry.Setup(cmd.Context(), cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tracingShutdown != nil {
			return tracingShutdown(cmd.Context())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ./flowstate.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func applyLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(slog.LevelDebug)
	case "info":
		log.SetLevel(slog.LevelInfo)
	case "warn":
		log.SetLevel(slog.LevelWarn)
	case "error":
		log.SetLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// app bundles the wired services behind a single open/close pair.
type app struct {
	db          *sqlite.DB
	definitions *definition.Store
	engine      *engine.Engine
}

// openApp opens the database and wires the definition store and engine.
// Callers must invoke close when done.
func openApp() (*app, func(), error) {
	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	defs := definition.NewStore(db.DefinitionRepository())
	eng := engine.New(defs, db.InstanceRepository(), db.Ledger(), engine.NewValidatorRegistry())

	closeFn := func() {
		if err := db.Close(); err != nil {
			log.ErrorErr(log.CatDB, "Failed to close database", err)
		}
	}
	return &app{db: db, definitions: defs, engine: eng}, closeFn, nil
}
