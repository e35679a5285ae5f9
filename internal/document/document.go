// Package document reads and writes the YAML documents of a registry store:
// the registry document and one document per tracked record.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/index"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/storage"
)

// Names are the file names making up a store.
type Names struct {
	StoreDir  string
	IndexFile string
	MetaFile  string
}

// DefaultNames returns the layout used when nothing is configured.
func DefaultNames() Names {
	return Names{StoreDir: "__registry", IndexFile: "INDEXFILE", MetaFile: "METAFILE"}
}

// Validator is implemented by the documents.
type Validator interface {
	Validate() error
}

// LoadRegistry reads and validates the registry document.
func LoadRegistry(store storage.Provider, name string) (*models.RegistryMeta, error) {
	m := models.NewRegistryMeta()
	if err := load(store, name, m); err != nil {
		return nil, err
	}
	if m.Comments == nil {
		m.Comments = models.Comments{}
	}
	if m.Flags == nil {
		m.Flags = models.FlagSet{}
	}
	if m.Groups == nil {
		m.Groups = models.Groups{}
	}
	return m, nil
}

// SaveRegistry writes the registry document.
func SaveRegistry(store storage.Provider, name string, m *models.RegistryMeta) error {
	return save(store, name, m)
}

// LoadRecord reads and validates the document of record id.
func LoadRecord(store storage.Provider, id uuid.UUID) (*models.RecordMeta, error) {
	m := models.NewRecordMeta()
	if err := load(store, id.String(), m); err != nil {
		return nil, err
	}
	if m.Comments == nil {
		m.Comments = models.Comments{}
	}
	if m.Flags == nil {
		m.Flags = models.FlagSet{}
	}
	return m, nil
}

// SaveRecord writes the document of record id.
func SaveRecord(store storage.Provider, id uuid.UUID, m *models.RecordMeta) error {
	return save(store, id.String(), m)
}

// DeleteRecord removes the document of record id.
func DeleteRecord(store storage.Provider, id uuid.UUID) error {
	return store.Delete(id.String())
}

// InitRecordFile writes a fresh, empty document for record id.
func InitRecordFile(store storage.Provider, id uuid.UUID) error {
	return SaveRecord(store, id, models.NewRecordMeta())
}

// InitStore creates the store directory below root with a header-only index
// and an empty registry document. It returns the absolute store path. An
// existing store is left alone and reported as apperr.ErrAlreadyExists.
func InitStore(root string, names Names) (string, error) {
	dir, err := filepath.Abs(filepath.Join(root, names.StoreDir))
	if err != nil {
		return "", fmt.Errorf("document: resolve store: %w", err)
	}
	if _, err := os.Stat(dir); err == nil {
		return dir, fmt.Errorf("document: registry %s: %w", dir, apperr.ErrAlreadyExists)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("document: create store: %w", err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return "", err
	}
	if err := store.Write(names.IndexFile, []byte(index.HeaderLine)); err != nil {
		return "", err
	}
	if err := SaveRegistry(store, names.MetaFile, models.NewRegistryMeta()); err != nil {
		return "", err
	}
	return dir, nil
}

func load(store storage.Provider, name string, target Validator) error {
	data, err := store.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("document: %s missing in %s: %w", name, store.Root(), apperr.ErrBrokenRegistry)
	}
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("document: %s is empty: %w", name, apperr.ErrInvalidDocument)
		}
		return fmt.Errorf("document: decode %s: %w: %w", name, apperr.ErrInvalidDocument, err)
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("document: validate %s: %w: %w", name, apperr.ErrInvalidDocument, err)
	}
	return nil
}

func save(store storage.Provider, name string, doc Validator) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("document: refusing to write %s: %w: %w", name, apperr.ErrInvalidDocument, err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("document: encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("document: encode %s: %w", name, err)
	}
	return store.Write(name, buf.Bytes())
}
