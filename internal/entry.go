// Package internal wires configuration, logging and the registry into the
// records command line.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/registry"
	"github.com/starford/filerecords/internal/render"
	pkgconfig "github.com/starford/filerecords/pkg/config"
)

// Version is reported by --version and the MCP server.
var Version = "dev"

// NewLogger builds the logger described by cfg, writing to w.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.App.LogLevel}
	if cfg.App.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Run builds the command tree and executes it with args.
func Run(ctx context.Context, args []string, opts ...Option) error {
	return NewCommand(opts...).Run(ctx, args)
}

func newApplication(opts []Option) *application {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// setup loads the configuration and logger once per invocation.
func (a *application) setup(cmd *cli.Command) error {
	var loadedFrom string
	if a.config == nil {
		cfg := NewDefaultConfig()
		path := cmd.String("config")
		found, err := pkgconfig.LoadOptional(path, cfg)
		if err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if found {
			loadedFrom = path
		}
		a.config = cfg
	}
	if a.logger == nil {
		a.logger = NewLogger(a.config, a.stderr)
	}
	if loadedFrom != "" {
		a.logger.Debug("configuration loaded", slog.String("path", loadedFrom))
	}
	return nil
}

// env assembles the registry environment for one command.
func (a *application) env(cmd *cli.Command) (registry.Env, error) {
	if err := a.setup(cmd); err != nil {
		return registry.Env{}, err
	}
	identity := registry.EnvIdentity(a.config.Identity.Env...)
	if user := cmd.String("user"); user != "" {
		identity = registry.StaticIdentity(user)
	}
	return registry.Env{
		Workdir:  a.workdir,
		Identity: identity,
		Now:      a.now,
		Logger:   a.logger,
		Names:    a.config.Store.Names(),
	}, nil
}

// open loads the registry governing the working directory.
func (a *application) open(cmd *cli.Command) (*registry.Registry, error) {
	env, err := a.env(cmd)
	if err != nil {
		return nil, err
	}
	return registry.Open(env.Workdir, env)
}

// renderer picks glamour output for terminals and plain Markdown otherwise.
func (a *application) renderer(plain bool) *render.Renderer {
	if plain || !a.config.Render.Enabled || !isTerminal(a.stdout) {
		return render.Plain()
	}
	r, err := render.New(a.config.Render.Width, a.config.Render.Style)
	if err != nil {
		a.logger.Warn("markdown rendering unavailable", slog.String("error", err.Error()))
		return render.Plain()
	}
	return r
}

// action adapts fn to the command tree: soft errors are logged as warnings
// and do not fail the command.
func (a *application) action(fn func(ctx context.Context, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := a.setup(cmd); err != nil {
			return err
		}
		err := fn(ctx, cmd)
		if apperr.IsSoft(err) {
			a.logger.Warn(softMessage(err), slog.String("detail", err.Error()))
			return nil
		}
		if errors.Is(err, apperr.ErrBrokenRegistry) {
			return fmt.Errorf("broken registry, the store is missing a file or holds an unreadable index: %w", err)
		}
		return err
	}
}

func softMessage(err error) string {
	if errors.Is(err, apperr.ErrAmbiguous) {
		return "More than one record matches, give a longer path"
	}
	return "No records found"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
