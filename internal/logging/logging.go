package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reloquent/schemacanvas/internal/config"
)

// Options controls where logs go.
type Options struct {
	Level     string
	Directory string
	// FileOnly keeps logs off stdout, for the terminal canvas which owns
	// the screen.
	FileOnly bool
}

// Setup initializes the logger with file and stdout output.
func Setup(level, directory string) (*slog.Logger, error) {
	return New(Options{Level: level, Directory: directory})
}

// New builds a text logger writing to a daily file under the directory and,
// unless FileOnly is set, to stdout.
func New(opts Options) (*slog.Logger, error) {
	directory := opts.Directory
	if directory == "" {
		directory = "~/.schemacanvas/logs/"
	}
	directory = config.ExpandHome(directory)

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	filename := fmt.Sprintf("schemacanvas-%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(directory, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var writer io.Writer = file
	if !opts.FileOnly {
		writer = io.MultiWriter(os.Stdout, file)
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	return slog.New(handler), nil
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
