package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/document"
)

// IdentityFunc returns the acting user.
type IdentityFunc func() (string, error)

// Env is the execution context of one command: where relative paths are
// resolved, who is acting, what time it is, and where events are logged.
type Env struct {
	Workdir  string
	Identity IdentityFunc
	Now      func() time.Time
	Logger   *slog.Logger
	Names    document.Names
}

// DefaultIdentityVars are consulted, in order, by EnvIdentity when no
// variables are given.
var DefaultIdentityVars = []string{"USER", "LOGNAME", "USERNAME"}

// EnvIdentity reads the user from the first non-empty environment variable.
func EnvIdentity(vars ...string) IdentityFunc {
	if len(vars) == 0 {
		vars = DefaultIdentityVars
	}
	return func() (string, error) {
		for _, v := range vars {
			if user := strings.TrimSpace(os.Getenv(v)); user != "" {
				return user, nil
			}
		}
		return "", fmt.Errorf("none of %s set: %w", strings.Join(vars, ", "), apperr.ErrNoIdentity)
	}
}

// StaticIdentity always returns user.
func StaticIdentity(user string) IdentityFunc {
	return func() (string, error) {
		if strings.TrimSpace(user) == "" {
			return "", apperr.ErrNoIdentity
		}
		return user, nil
	}
}

func (e Env) withDefaults() (Env, error) {
	if e.Workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return e, fmt.Errorf("registry: working directory: %w", err)
		}
		e.Workdir = wd
	}
	if !filepath.IsAbs(e.Workdir) {
		wd, err := filepath.Abs(e.Workdir)
		if err != nil {
			return e, fmt.Errorf("registry: working directory: %w", err)
		}
		e.Workdir = wd
	}
	if e.Identity == nil {
		e.Identity = EnvIdentity()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	if e.Names == (document.Names{}) {
		e.Names = document.DefaultNames()
	}
	return e, nil
}

func (e Env) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.Workdir, path)
}
