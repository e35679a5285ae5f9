// Package index maintains the registry's index table: one row per tracked
// file binding its id to a filename and a path relative to the store.
package index

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/models"
)

// Table is the in-memory index. Rows keep insertion order; lookups by id and
// relpath go through secondary maps updated on every mutation.
type Table struct {
	rows      []*models.IndexRow
	byID      map[uuid.UUID]*models.IndexRow
	byRelpath map[string]*models.IndexRow
}

// New returns an empty table.
func New() *Table {
	return &Table{
		byID:      make(map[uuid.UUID]*models.IndexRow),
		byRelpath: make(map[string]*models.IndexRow),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of all rows in insertion order.
func (t *Table) Rows() []models.IndexRow {
	out := make([]models.IndexRow, len(t.rows))
	for i, r := range t.rows {
		out[i] = *r
	}
	return out
}

// Get returns the row with the given id.
func (t *Table) Get(id uuid.UUID) (models.IndexRow, bool) {
	r, ok := t.byID[id]
	if !ok {
		return models.IndexRow{}, false
	}
	return *r, true
}

// ByRelpath returns the row tracking relpath exactly.
func (t *Table) ByRelpath(relpath string) (models.IndexRow, bool) {
	r, ok := t.byRelpath[normalize(relpath)]
	if !ok {
		return models.IndexRow{}, false
	}
	return *r, true
}

// Containing returns every row whose relpath contains query, in insertion order.
func (t *Table) Containing(query string) []models.IndexRow {
	query = normalize(query)
	var out []models.IndexRow
	for _, r := range t.rows {
		if strings.Contains(r.Relpath, query) {
			out = append(out, *r)
		}
	}
	return out
}

// Append adds a row. Both the id and the relpath must be new.
func (t *Table) Append(row models.IndexRow) error {
	row.Relpath = normalize(row.Relpath)
	if _, dup := t.byID[row.ID]; dup {
		return fmt.Errorf("index: id %s: %w", row.ID, apperr.ErrAlreadyExists)
	}
	if _, dup := t.byRelpath[row.Relpath]; dup {
		return fmt.Errorf("index: %s: %w", row.Relpath, apperr.ErrAlreadyExists)
	}
	r := &row
	t.rows = append(t.rows, r)
	t.byID[r.ID] = r
	t.byRelpath[r.Relpath] = r
	return nil
}

// Remove drops the row with the given id.
func (t *Table) Remove(id uuid.UUID) error {
	r, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("index: id %s: %w", id, apperr.ErrNotFound)
	}
	t.rows = slices.DeleteFunc(t.rows, func(x *models.IndexRow) bool { return x == r })
	delete(t.byID, id)
	delete(t.byRelpath, r.Relpath)
	return nil
}

// Move rewrites the relpath and filename of a row in place.
func (t *Table) Move(id uuid.UUID, relpath, filename string) error {
	r, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("index: id %s: %w", id, apperr.ErrNotFound)
	}
	relpath = normalize(relpath)
	if other, taken := t.byRelpath[relpath]; taken && other != r {
		return fmt.Errorf("index: %s: %w", relpath, apperr.ErrAlreadyExists)
	}
	delete(t.byRelpath, r.Relpath)
	r.Relpath = relpath
	r.Filename = filename
	t.byRelpath[relpath] = r
	return nil
}

// Reset removes every row.
func (t *Table) Reset() {
	t.rows = nil
	clear(t.byID)
	clear(t.byRelpath)
}

func normalize(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
