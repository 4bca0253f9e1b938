package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reloquent/schemacanvas/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and create the schemacanvas configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Server:\n")
		fmt.Printf("    Addr:           %s\n", cfg.Server.Addr)
		fmt.Printf("    Dev mode:       %v\n", cfg.Server.DevMode)
		fmt.Println()
		fmt.Printf("  Canvas:\n")
		fmt.Printf("    Zoom:           %g to %g\n", cfg.Canvas.MinZoom, cfg.Canvas.MaxZoom)
		fmt.Printf("    Self refs:      %v\n", cfg.Canvas.AllowSelfReference)
		fmt.Printf("    Parallel:       %v\n", cfg.Policy().AllowParallel)
		fmt.Printf("    History limit:  %d\n", cfg.Canvas.HistoryLimit)
		if cfg.Canvas.Templates != "" {
			fmt.Printf("    Templates:      %s\n", cfg.Canvas.Templates)
		}
		fmt.Println()
		fmt.Printf("  Autosave:\n")
		if cfg.Autosave.Disabled {
			fmt.Printf("    Disabled\n")
		} else {
			fmt.Printf("    Interval:       %s\n", cfg.Autosave.Interval)
			fmt.Printf("    Max retries:    %d\n", cfg.Autosave.MaxRetries)
		}
		fmt.Println()
		fmt.Printf("  Persistence:\n")
		fmt.Printf("    Backend:        %s\n", cfg.Persistence.Backend)
		switch cfg.Persistence.Backend {
		case config.BackendFile:
			fmt.Printf("    Directory:      %s\n", cfg.Persistence.Directory)
		case config.BackendMongoDB:
			fmt.Printf("    DSN:            %s\n", maskSecret(cfg.Persistence.DSN))
			fmt.Printf("    Database:       %s.%s\n", cfg.Persistence.Database, cfg.Persistence.Collection)
		case config.BackendSQLite, config.BackendPostgres:
			fmt.Printf("    DSN:            %s\n", maskSecret(cfg.Persistence.DSN))
		}
		if cfg.Persistence.CacheSize > 0 {
			fmt.Printf("    Cache:          %d documents\n", cfg.Persistence.CacheSize)
		}
		if cfg.Import.DSN != "" {
			fmt.Println()
			fmt.Printf("  Import:\n")
			fmt.Printf("    DSN:            %s\n", maskSecret(cfg.Import.DSN))
			fmt.Printf("    Schema:         %s\n", cfg.Import.Schema)
		}
		fmt.Println()
		fmt.Printf("  Logging:          %s -> %s\n", cfg.Logging.Level, cfg.Logging.Directory)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		err = cfg.Validate()
		if err == nil {
			good.Println("Configuration is valid.")
			return nil
		}

		var problems []error
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			problems = joined.Unwrap()
		} else {
			problems = []error{err}
		}
		fmt.Println("Validation errors:")
		for _, p := range problems {
			bad.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d validation error(s)", len(problems))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with every default filled in",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Default().Save(path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		good.Printf("Wrote %s\n", path)
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
