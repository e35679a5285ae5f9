// Package manifest summarises a whole registry into a single document that can
// be written as YAML, Markdown or an SQLite database.
package manifest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/registry"
	"github.com/starford/filerecords/internal/storage"
)

// Entry is one tracked file in a manifest.
type Entry struct {
	ID       uuid.UUID       `yaml:"-"`
	Name     string          `yaml:"name"`
	Path     string          `yaml:"path"`
	Flags    models.FlagSet  `yaml:"flags"`
	Comments models.Comments `yaml:"comments"`
}

// Manifest is a snapshot of a registry and all of its records.
type Manifest struct {
	Directory string
	Generated time.Time
	Meta      models.RegistryMeta
	// Entries keep index order.
	Entries []Entry
}

// Document is the structured form of a manifest: the registry document plus
// the directory and every record keyed by its path.
type Document struct {
	Comments  models.Comments  `yaml:"comments"`
	Flags     models.FlagSet   `yaml:"flags"`
	Groups    models.Groups    `yaml:"groups"`
	Directory string           `yaml:"directory"`
	Records   map[string]Entry `yaml:"records"`
}

// Build loads every record of reg once.
func Build(reg *registry.Registry) (*Manifest, error) {
	recs, err := reg.Records()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m := &Manifest{
		Directory: reg.Directory,
		Generated: reg.Now(),
		Meta:      reg.Meta(),
		Entries:   make([]Entry, 0, len(recs)),
	}
	for _, rec := range recs {
		m.Entries = append(m.Entries, NewEntry(rec))
	}
	return m, nil
}

// NewEntry snapshots a single record.
func NewEntry(rec *registry.FileRecord) Entry {
	meta := rec.Meta()
	return Entry{
		ID:       rec.ID,
		Name:     rec.Filename,
		Path:     rec.Path(),
		Flags:    meta.Flags,
		Comments: meta.Comments,
	}
}

// Document returns the structured form of the manifest.
func (m *Manifest) Document() Document {
	doc := Document{
		Comments:  m.Meta.Comments,
		Flags:     m.Meta.Flags,
		Groups:    m.Meta.Groups,
		Directory: m.Directory,
		Records:   make(map[string]Entry, len(m.Entries)),
	}
	if doc.Groups == nil {
		doc.Groups = models.Groups{}
	}
	for _, e := range m.Entries {
		doc.Records[e.Path] = e
	}
	return doc
}

// YAML encodes the structured document.
func (m *Manifest) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.Document()); err != nil {
		return nil, fmt.Errorf("manifest: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("manifest: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteYAML writes the structured document to path.
func (m *Manifest) WriteYAML(path string) error {
	data, err := m.YAML()
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteMarkdown writes the timestamped report to path.
func (m *Manifest) WriteMarkdown(path string) error {
	return writeFile(path, []byte(m.Report(true)))
}

func writeFile(path string, data []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	dir, err := storage.NewFS(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := dir.Write(filepath.Base(abs), data); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}
