package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/filerecords/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	names := cfg.Store.Names()
	if names.StoreDir != "__registry" || names.IndexFile != "INDEXFILE" || names.MetaFile != "METAFILE" {
		t.Errorf("names = %+v", names)
	}
}

func TestApplicationConfig_EmptyFormatDefaultsText(t *testing.T) {
	cfg := ApplicationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty format should default to text: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("format = %q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestApplicationConfig_InvalidFormat(t *testing.T) {
	cfg := ApplicationConfig{LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid format should fail validation")
	}
}

func TestStoreConfig_RejectsNestedNames(t *testing.T) {
	cfg := NewDefaultConfig().Store
	cfg.DirName = "a/b"
	if err := cfg.Validate(); err == nil {
		t.Fatal("dir_name with a separator should fail")
	}
}

func TestStoreConfig_SameFiles(t *testing.T) {
	cfg := NewDefaultConfig().Store
	cfg.MetaFile = cfg.IndexFile
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIdentityConfig_Empty(t *testing.T) {
	cfg := IdentityConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty identity env should fail")
	}
	cfg.Env = []string{"USER", ""}
	if err := cfg.Validate(); err == nil {
		t.Fatal("blank variable name should fail")
	}
}

func TestRenderConfig_Width(t *testing.T) {
	cfg := RenderConfig{Width: 5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("narrow width should fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("RECORDS_TEST_USERVAR", "OPERATOR")
	content := `app:
  log_level: debug
  log_format: json
identity:
  env: [${RECORDS_TEST_USERVAR}]
render:
  enabled: false
  width: 80
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("app = %+v", cfg.App)
	}
	if len(cfg.Identity.Env) != 1 || cfg.Identity.Env[0] != "OPERATOR" {
		t.Errorf("identity = %v", cfg.Identity.Env)
	}
	if cfg.Render.Enabled || cfg.Render.Width != 80 {
		t.Errorf("render = %+v", cfg.Render)
	}
	// Untouched sections keep their defaults.
	if cfg.Store.DirName != "__registry" {
		t.Errorf("store = %+v", cfg.Store)
	}
}
