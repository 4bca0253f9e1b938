package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reloquent/schemacanvas/internal/autosave"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/tui"
)

var editCmd = &cobra.Command{
	Use:   "edit [project]",
	Short: "Edit a project on the terminal canvas",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := "default"
		if len(args) == 1 {
			project = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// The terminal belongs to the canvas, so logs go to file only.
		logger, err := newLogger(cfg, true)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		opts, err := sessionOptions(cfg)
		if err != nil {
			return err
		}

		st, err := persistence.Open(ctx, cfg.Persistence, logger)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Persistence.Backend, err)
		}
		defer st.Close()

		manager := session.NewManager(st, logger, opts)
		sess, err := manager.Get(ctx, project)
		if err != nil {
			return err
		}

		done := make(chan struct{})
		if !cfg.Autosave.Disabled {
			saver := autosave.New(autosave.ForManager(manager), autosave.Config{
				Interval:   cfg.Autosave.Interval,
				MaxRetries: cfg.Autosave.MaxRetries,
			}, logger)
			go func() {
				defer close(done)
				_ = saver.Run(ctx)
			}()
		} else {
			close(done)
		}

		runErr := tui.Run(sess)
		cancel()
		<-done

		if sess.Dirty() {
			saveCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := sess.Save(saveCtx); err != nil {
				return fmt.Errorf("saving %s: %w", project, err)
			}
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
