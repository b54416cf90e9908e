// Command tavernsim runs the tavern simulation and inspects what it stored.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/talgya/tavern-minds/internal/config"
	"github.com/talgya/tavern-minds/internal/persistence"
)

var (
	// Global flags
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tavernsim",
	Short: "Autonomous agents living out evenings in a tavern",
	Long: `tavernsim steps a population of cognitive agents through tavern time.

Agents perceive, feel, remember, plan and talk; relationships, rumors and songs
spread between them. Every decision is recorded as a trace that can be replayed
and inspected.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("TAVERN_CONFIG"), "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database (overrides storage.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides logging.level)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(relationsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the defaults, and applies the global flag overrides. It also
// installs the default logger at the configured level.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if env := os.Getenv("TAVERN_DB"); env != "" && dbPath == "" && cfg.Storage.Path == "" {
		cfg.Storage.Path = env
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return cfg, fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// openStore opens the configured database. Inspection commands cannot work without one.
func openStore(cfg config.Config) (*persistence.DB, error) {
	if cfg.Storage.Path == "" {
		return nil, errors.New("no database: pass --db or set storage.path")
	}
	return persistence.Open(cfg.Storage.Path)
}
