package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reloquent/schemacanvas/internal/config"
	"github.com/reloquent/schemacanvas/internal/logging"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "schemacanvas",
	Short: "schemacanvas: visual database schema editor",
	Long: `schemacanvas edits database schemas as a graph of entities and
relationships on a pannable, zoomable canvas.

Use "serve" for the browser canvas, "edit" for the terminal canvas and
"import" to seed a project from a live PostgreSQL database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFile)
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.schemacanvas/schemacanvas.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config is read")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
}

// loadEnv reads a dotenv file into the environment so ${ENV:...} secret
// references resolve. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file, falling back to defaults when none
// exists, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, fileOnly bool) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Directory: cfg.Logging.Directory,
		FileOnly:  fileOnly,
	})
}

func sessionOptions(cfg *config.Config) (session.Options, error) {
	opts := session.DefaultOptions()
	opts.Bounds = cfg.Bounds()
	opts.Policy = cfg.Policy()
	opts.HistoryLimit = cfg.Canvas.HistoryLimit
	if cfg.Canvas.Templates != "" {
		templates, err := loadTemplates(cfg.Canvas.Templates)
		if err != nil {
			return opts, err
		}
		opts.Templates = templates
	}
	return opts, nil
}

// loadTemplates reads an explorer palette written by import --templates.
func loadTemplates(path string) ([]schema.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}
	var templates []schema.Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing templates %s: %w", path, err)
	}
	for _, t := range templates {
		if err := schema.ValidateIdentifier("template name", t.Name); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Name, err)
		}
		if err := schema.ValidateFields(t.Fields); err != nil {
			return nil, fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	return templates, nil
}
