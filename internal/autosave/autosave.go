// Package autosave periodically saves documents with unsaved edits.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reloquent/schemacanvas/internal/session"
)

// Target is a document the saver watches.
type Target interface {
	ID() string
	Dirty() bool
	Save(ctx context.Context) error
}

// Config controls the save loop.
type Config struct {
	Interval time.Duration
	// MaxRetries is the number of retries after a failed save. Values below
	// one are raised to one.
	MaxRetries int
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
}

// DefaultConfig saves every 30 seconds with three retries.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, MaxRetries: 3, InitialBackoff: 500 * time.Millisecond}
}

// Saver runs the auto-save loop.
type Saver struct {
	targets func() []Target
	cfg     Config
	logger  *slog.Logger
}

// New creates a saver over the targets returned by list.
func New(list func() []Target, cfg Config, logger *slog.Logger) *Saver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{targets: list, cfg: cfg, logger: logger}
}

// ForManager lists the open sessions of m.
func ForManager(m *session.Manager) func() []Target {
	return func() []Target {
		sessions := m.Sessions()
		out := make([]Target, len(sessions))
		for i, s := range sessions {
			out[i] = s
		}
		return out
	}
}

// Run ticks until ctx is done. It always returns nil after a final pass
// that saves whatever is still dirty.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Info("autosave started", "interval", s.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Tick(flush)
			cancel()
			s.logger.Info("autosave stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick saves every dirty target once, with retries, and returns how many
// saves failed.
func (s *Saver) Tick(ctx context.Context) int {
	failed := 0
	for _, t := range s.targets() {
		if !t.Dirty() {
			continue
		}
		if err := s.SaveWithRetry(ctx, t); err != nil {
			failed++
			s.logger.Error("autosave failed", "project", t.ID(), "error", err)
		}
	}
	return failed
}

// SaveWithRetry saves t, retrying with exponential backoff.
func (s *Saver) SaveWithRetry(ctx context.Context, t Target) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.InitialBackoff
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.cfg.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := t.Save(ctx)
		if err != nil && attempt <= s.cfg.MaxRetries {
			s.logger.Warn("autosave attempt failed", "project", t.ID(), "attempt", attempt, "error", err)
		}
		return err
	}, b)
	if err != nil {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return nil
}
