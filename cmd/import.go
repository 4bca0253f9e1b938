package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reloquent/schemacanvas/internal/importer"
	"github.com/reloquent/schemacanvas/internal/persistence"
)

var (
	importDSN       string
	importSchema    string
	importInclude   []string
	importExclude   []string
	importTemplates string
	importDryRun    bool
)

var importCmd = &cobra.Command{
	Use:   "import <project>",
	Short: "Seed a project from a PostgreSQL schema",
	Long: `Discover tables, keys and references in a PostgreSQL schema and
store them as a project laid out on the align grid. Foreign keys become
many-to-one connections, unique foreign keys one-to-one, and junction tables
many-to-many connections between their parents.

With --templates the tables are written as explorer templates instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := args[0]
		if err := persistence.ValidateProjectID(project); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if importDSN != "" {
			cfg.Import.DSN = importDSN
		}
		if importSchema != "" {
			cfg.Import.Schema = importSchema
		}
		if len(importInclude) > 0 {
			cfg.Import.Include = importInclude
		}
		if len(importExclude) > 0 {
			cfg.Import.Exclude = importExclude
		}
		if cfg.Import.DSN == "" {
			return fmt.Errorf("no source database: pass --dsn or set import.dsn")
		}

		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		src, err := importer.Connect(ctx, cfg.Import.DSN, cfg.Import.Schema, logger)
		if err != nil {
			return err
		}
		defer src.Close()

		tables, err := src.Discover(ctx)
		if err != nil {
			return fmt.Errorf("discovering schema %s: %w", cfg.Import.Schema, err)
		}
		selected := importer.Filter(tables, cfg.Import.Include, cfg.Import.Exclude)
		fmt.Printf("Discovered %d tables, %d selected.\n", len(tables), len(selected))
		for _, o := range importer.FindOrphanedReferences(selected) {
			warn.Printf("  ! %s.%s references %s, which is not selected\n", o.Table, o.ForeignKey, o.ReferencedTable)
		}

		if importTemplates != "" {
			templates := importer.Templates(selected, cfg.TypeOverrides())
			data, err := yaml.Marshal(templates)
			if err != nil {
				return fmt.Errorf("marshaling templates: %w", err)
			}
			if importDryRun {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(importTemplates, data, 0o644); err != nil {
				return fmt.Errorf("writing templates: %w", err)
			}
			good.Printf("Wrote %d templates to %s\n", len(templates), importTemplates)
			return nil
		}

		res := importer.Build(project, selected, importer.Options{
			Policy:        cfg.Policy(),
			TypeOverrides: cfg.TypeOverrides(),
		})
		for _, j := range res.Junctions {
			subtle.Printf("  ~ %s folded into a many-to-many connection\n", j)
		}
		for _, s := range res.Skipped {
			warn.Printf("  - skipped %s\n", s)
		}

		if importDryRun {
			data, err := res.Document.ToYAML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		st, err := persistence.Open(ctx, cfg.Persistence, logger)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Persistence.Backend, err)
		}
		defer st.Close()
		if err := st.SaveSchema(ctx, project, res.Document); err != nil {
			return err
		}
		good.Printf("Imported %d entities and %d connections into %s\n",
			len(res.Document.Entities), len(res.Document.Connections), brand.Sprint(project))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "PostgreSQL connection string (default: import.dsn)")
	importCmd.Flags().StringVar(&importSchema, "schema", "", "PostgreSQL schema (default: import.schema or public)")
	importCmd.Flags().StringSliceVar(&importInclude, "include", nil, "table glob patterns to include")
	importCmd.Flags().StringSliceVar(&importExclude, "exclude", nil, "table glob patterns to exclude")
	importCmd.Flags().StringVar(&importTemplates, "templates", "", "write explorer templates to this file instead of a project")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "print the result instead of storing it")
	rootCmd.AddCommand(importCmd)
}
