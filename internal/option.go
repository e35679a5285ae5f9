package internal

import (
	"io"
	"log/slog"
	"time"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	workdir string
	now     func() time.Time
}

// WithConfig sets the application configuration. The config file is not read
// when one is given.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithStdout sets where command output goes.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithStderr sets where logs go.
func WithStderr(w io.Writer) Option {
	return func(a *application) {
		a.stderr = w
	}
}

// WithWorkdir sets the directory commands act on instead of the process
// working directory.
func WithWorkdir(dir string) Option {
	return func(a *application) {
		a.workdir = dir
	}
}

// WithClock sets the clock used for comment timestamps and export names.
func WithClock(now func() time.Time) Option {
	return func(a *application) {
		a.now = now
	}
}
