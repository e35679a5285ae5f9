package registry

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/document"
	"github.com/starford/filerecords/internal/models"
)

// FileRecord is the metadata of one tracked file. Records are built from the
// index on demand and are only valid for the registry that produced them.
type FileRecord struct {
	BaseRecord

	ID       uuid.UUID
	Filename string
	// Relpath is relative to the store directory and fixed in the index.
	Relpath string

	reg  *Registry
	meta *models.RecordMeta
}

func newFileRecord(reg *Registry, row models.IndexRow, meta *models.RecordMeta) *FileRecord {
	rec := &FileRecord{
		ID:       row.ID,
		Filename: row.Filename,
		Relpath:  row.Relpath,
		reg:      reg,
		meta:     meta,
	}
	rec.BaseRecord = BaseRecord{env: &reg.env, comments: &meta.Comments, flags: &meta.Flags}
	return rec
}

// Path returns the file path relative to the registry directory, with
// forward slashes.
func (r *FileRecord) Path() string {
	return r.reg.rootRelative(r.Relpath)
}

// AbsPath returns the absolute path of the tracked file.
func (r *FileRecord) AbsPath() string {
	return filepath.Join(r.reg.StoreDir, filepath.FromSlash(r.Relpath))
}

// Exists reports whether the tracked file is present on disk.
func (r *FileRecord) Exists() (bool, error) {
	return r.reg.files.Exists(filepath.FromSlash(r.Path()))
}

// Meta returns a copy of the record document.
func (r *FileRecord) Meta() models.RecordMeta {
	return models.RecordMeta{Comments: r.Comments(), Flags: models.NewFlagSet(r.Flags()...)}
}

// AddFlags adds flags, expanding group labels, and registers the expanded
// flags in the registry vocabulary.
func (r *FileRecord) AddFlags(flags ...string) []string {
	expanded := r.reg.meta.Groups.Expand(flags...)
	r.addFlags(expanded)
	r.reg.meta.Flags.Add(expanded...)
	return expanded
}

// Save writes the record document and then the registry.
func (r *FileRecord) Save() error {
	if err := document.SaveRecord(r.reg.store, r.ID, r.meta); err != nil {
		return fmt.Errorf("registry: save record %s: %w", r.ID, err)
	}
	return r.reg.Save()
}

func (r *FileRecord) String() string {
	return fmt.Sprintf("FileRecord(id=%s, filename=%s)", r.ID, r.Filename)
}

// LogValue implements slog.LogValuer.
func (r *FileRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID.String()),
		slog.String("path", r.Path()),
	)
}
