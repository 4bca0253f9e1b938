package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reloquent/schemacanvas/internal/config"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:   "status [project...]",
	Short: "Show stored projects and whether they are open",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		fmt.Printf("Backend: %s\n", brand.Sprint(cfg.Persistence.Backend))
		if cfg.Persistence.Backend == config.BackendFile {
			return fileStatus(ctx, cfg, args)
		}

		st, err := persistence.Open(ctx, cfg.Persistence, nil)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Persistence.Backend, err)
		}
		defer st.Close()

		ids := args
		if len(ids) == 0 {
			l, ok := st.(persistence.Lister)
			if !ok {
				return fmt.Errorf("the %s backend cannot list projects; name them as arguments", cfg.Persistence.Backend)
			}
			if ids, err = l.Projects(ctx); err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			fmt.Println(subtle.Sprint("No projects saved yet."))
			return nil
		}
		fmt.Println()
		for _, id := range ids {
			doc, err := st.LoadSchema(ctx, id)
			if err != nil {
				fmt.Printf("  %s %s: %v\n", bad.Sprint("x"), id, err)
				continue
			}
			fmt.Printf("  %s %s\n", good.Sprint("✓"), summary(id, doc))
		}
		return nil
	},
}

// fileStatus reads documents without taking their locks, so it works while
// a server or editor has them open.
func fileStatus(ctx context.Context, cfg *config.Config, args []string) error {
	st, err := persistence.NewFile(cfg.Persistence.Directory, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Directory: %s\n", cfg.Persistence.Directory)

	ids := args
	if len(ids) == 0 {
		if ids, err = st.Projects(ctx); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		fmt.Println(subtle.Sprint("No projects saved yet."))
		return nil
	}
	fmt.Println()
	for _, id := range ids {
		doc, err := st.Peek(id)
		if err != nil {
			fmt.Printf("  %s %s: %v\n", bad.Sprint("x"), id, err)
			continue
		}
		open := subtle.Sprint("closed")
		if held, pid, _ := st.Holder(id); held {
			open = warn.Sprintf("open (pid %d)", pid)
		}
		fmt.Printf("  %s %s  %s\n", good.Sprint("✓"), summary(id, doc), open)
	}
	return nil
}

func summary(id string, doc *schema.Document) string {
	return fmt.Sprintf("%-24s %3d entities %3d connections", id, len(doc.Entities), len(doc.Connections))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
