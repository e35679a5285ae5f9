package index

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/storage"
)

// Header is the column order written to the index file.
var Header = []string{"id", "filename", "relpath"}

// HeaderLine is the literal first line of an empty index file.
const HeaderLine = "id\tfilename\trelpath\n"

// Read parses a tab-separated index. Columns are located by header name.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("index: empty file, header missing: %w", apperr.ErrBrokenRegistry)
	}
	if err != nil {
		return nil, fmt.Errorf("index: read header: %w", err)
	}
	cols := make([]int, len(Header))
	for i, name := range Header {
		cols[i] = slices.Index(head, name)
		if cols[i] < 0 {
			return nil, fmt.Errorf("index: column %q missing: %w", name, apperr.ErrBrokenRegistry)
		}
	}

	t := New()
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index: line %d: %w", line, err)
		}
		if len(rec) < len(head) {
			return nil, fmt.Errorf("index: line %d: %d fields, want %d: %w", line, len(rec), len(head), apperr.ErrBrokenRegistry)
		}
		id, err := uuid.Parse(rec[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("index: line %d: bad id %q: %w", line, rec[cols[0]], apperr.ErrBrokenRegistry)
		}
		row := models.IndexRow{ID: id, Filename: rec[cols[1]], Relpath: rec[cols[2]]}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("index: line %d: %w", line, err)
		}
	}
	return t, nil
}

// Write encodes the table with the standard header.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("index: write header: %w", err)
	}
	for _, r := range t.rows {
		if err := cw.Write([]string{r.ID.String(), r.Filename, r.Relpath}); err != nil {
			return fmt.Errorf("index: write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads the index file name from the store. A missing file means the
// registry is broken.
func Load(store storage.Provider, name string) (*Table, error) {
	data, err := store.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("index: %s missing in %s: %w", name, store.Root(), apperr.ErrBrokenRegistry)
	}
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data))
}

// Save writes the table to the index file name in the store.
func Save(store storage.Provider, name string, t *Table) error {
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return err
	}
	return store.Write(name, buf.Bytes())
}
