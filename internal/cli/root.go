// Package cli provides the agentdocs command line.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agentdocs/internal/config"
	"agentdocs/internal/storage"
)

const defaultConfigFile = "config.json"

var (
	configPath string
	dbType     string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "agentdocs",
	Short: "Chat with document-writing agents and export the results",
	Long: `agentdocs serves an HTTP API where users chat with preset agent personas
backed by a hosted language model and export content to DOCX or PDF.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(os.Stderr, "Warning: .env file not found")
			} else {
				fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
			}
		}
		if configPath == "" {
			configPath = os.Getenv("AGENTDOCS_CONFIG")
		}
		if !cmd.Flags().Changed("db") {
			if env := os.Getenv("AGENTDOCS_DB"); env != "" {
				dbType = env
			}
		}

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		logger, closeLog = config.SetupLogger(cfg.Logging.File, cfg.Logging.Level)
		slog.SetDefault(logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// loadConfig reads the given file. Without an explicit path a missing config.json falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// openDatabase connects and migrates the configured database.
func openDatabase() (*sql.DB, error) {
	if db, ok := cfg.Databases[dbType]; ok && isSQLite(dbType) {
		ensureSQLiteDir(db.DSN)
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, dbType); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func isSQLite(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}

func ensureSQLiteDir(dsn string) {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		logger.Warn("create sqlite directory", "path", p, "error", err)
	}
}

// Execute runs the root command. The log file is closed whether or not the command failed.
func Execute() error {
	defer closeLogFile()
	return rootCmd.Execute()
}

func closeLogFile() {
	if closeLog == nil {
		return
	}
	if err := closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	closeLog = nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.json, .yaml or .toml; env AGENTDOCS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dbType, "db", "sqlite3", "database driver: sqlite3 or mysql (env AGENTDOCS_DB)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
