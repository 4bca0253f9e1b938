package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reloquent/schemacanvas/internal/api"
	"github.com/reloquent/schemacanvas/internal/autosave"
	"github.com/reloquent/schemacanvas/internal/config"
	"github.com/reloquent/schemacanvas/internal/persistence"
	"github.com/reloquent/schemacanvas/internal/session"
	"github.com/reloquent/schemacanvas/internal/ws"
	"github.com/reloquent/schemacanvas/web"
)

var (
	serveAddr      string
	serveDevMode   bool
	serveEphemeral bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the canvas server",
	Long: `Start the HTTP API, the WebSocket hub and the browser canvas client.
Open projects are saved periodically and once more on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("dev") {
			cfg.Server.DevMode = serveDevMode
		}
		if serveEphemeral {
			cfg.Persistence.Backend = config.BackendMemory
			cfg.Persistence.CacheSize = 0
		}

		logger, err := newLogger(cfg, false)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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
		hub := ws.NewHub(manager, logger)

		distFS, err := fs.Sub(web.DistFS, "dist")
		if err != nil {
			return fmt.Errorf("loading embedded web client: %w", err)
		}
		srv := api.New(manager, logger, cfg.Server.Addr,
			api.WithStaticFS(distFS),
			api.WithHub(hub),
			api.WithDevMode(cfg.Server.DevMode),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		})
		if !cfg.Autosave.Disabled {
			saver := autosave.New(autosave.ForManager(manager), autosave.Config{
				Interval:   cfg.Autosave.Interval,
				MaxRetries: cfg.Autosave.MaxRetries,
			}, logger)
			g.Go(func() error { return saver.Run(gctx) })
		}

		fmt.Fprintf(os.Stderr, "schemacanvas: http://%s/projects/default\n", cfg.Server.Addr)

		err = g.Wait()
		if cfg.Autosave.Disabled {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if serr := manager.SaveDirty(flushCtx); serr != nil {
				logger.Error("saving open projects", "error", serr)
			}
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8750", "listen address")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development mode")
	serveCmd.Flags().BoolVar(&serveEphemeral, "ephemeral", false, "keep projects in memory only")
	rootCmd.AddCommand(serveCmd)
}
