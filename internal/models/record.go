// Package models defines the metadata documents kept by a registry.
package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// RecordMeta is the per-file document stored under the record id.
type RecordMeta struct {
	Comments Comments `yaml:"comments"`
	Flags    FlagSet  `yaml:"flags"`
}

// NewRecordMeta returns an empty record document.
func NewRecordMeta() *RecordMeta {
	return &RecordMeta{Comments: Comments{}, Flags: FlagSet{}}
}

// Validate validates the record document.
func (m *RecordMeta) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Comments),
		validation.Field(&m.Flags),
	)
}

// RegistryMeta is the registry-level document: its own comments and flags,
// the vocabulary of every flag used, and the flag groups.
type RegistryMeta struct {
	// Directory is written by older tools; it is read and ignored.
	Directory string   `yaml:"directory,omitempty"`
	Comments  Comments `yaml:"comments"`
	Flags     FlagSet  `yaml:"flags"`
	Groups    Groups   `yaml:"groups"`
}

// NewRegistryMeta returns an empty registry document.
func NewRegistryMeta() *RegistryMeta {
	return &RegistryMeta{Comments: Comments{}, Flags: FlagSet{}, Groups: Groups{}}
}

// Validate validates the registry document.
func (m *RegistryMeta) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Comments),
		validation.Field(&m.Flags),
		validation.Field(&m.Groups),
	)
}

// IndexRow is one line of the index table.
type IndexRow struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	Relpath  string    `json:"relpath"`
}
