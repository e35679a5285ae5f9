package internal

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/filerecords/internal/document"
	"github.com/starford/filerecords/internal/registry"
	"github.com/starford/filerecords/internal/render"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ConfigEnv names the variable holding the config file path.
const ConfigEnv = "RECORDS_CONFIG_FILE"

var plainName = regexp.MustCompile(`^[^/\\]+$`)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Identity IdentityConfig    `yaml:"identity"`
	Render   RenderConfig      `yaml:"render"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	return c.Render.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// StoreConfig names the store directory and the files inside it.
type StoreConfig struct {
	DirName    string `yaml:"dir_name"`
	IndexFile  string `yaml:"index_file"`
	MetaFile   string `yaml:"meta_file"`
	ExportName string `yaml:"export_name"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DirName, validation.Required, validation.Match(plainName)),
		validation.Field(&c.IndexFile, validation.Required, validation.Match(plainName)),
		validation.Field(&c.MetaFile, validation.Required, validation.Match(plainName)),
		validation.Field(&c.ExportName, validation.Required),
	); err != nil {
		return err
	}
	if c.IndexFile == c.MetaFile {
		return errors.New("store: index_file and meta_file must differ")
	}
	return nil
}

// Names returns the store names in the form the registry expects.
func (c *StoreConfig) Names() document.Names {
	return document.Names{StoreDir: c.DirName, IndexFile: c.IndexFile, MetaFile: c.MetaFile}
}

// IdentityConfig lists the environment variables consulted, in order, for the
// acting user.
type IdentityConfig struct {
	Env []string `yaml:"env"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.Required, validation.Each(validation.Required)),
	)
}

// RenderConfig controls terminal rendering of Markdown views.
type RenderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Width   int    `yaml:"width"`
	Style   string `yaml:"style"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(20), validation.Max(400)),
	)
}

// DefaultConfigPath returns $HOME/.config/filerecords/config.yaml, or an
// empty string when the home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "filerecords", "config.yaml")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	names := document.DefaultNames()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Store: StoreConfig{
			DirName:    names.StoreDir,
			IndexFile:  names.IndexFile,
			MetaFile:   names.MetaFile,
			ExportName: "registry",
		},
		Identity: IdentityConfig{
			Env: append([]string(nil), registry.DefaultIdentityVars...),
		},
		Render: RenderConfig{
			Enabled: true,
			Width:   100,
			Style:   render.DefaultStyle,
		},
	}
}
