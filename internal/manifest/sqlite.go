package manifest

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/filerecords/internal/models"
)

const schemaSQL = `
CREATE TABLE registry (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE records (
	id       TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	path     TEXT NOT NULL UNIQUE
);

CREATE TABLE flags (
	record_id TEXT NOT NULL DEFAULT '',
	flag      TEXT NOT NULL,
	UNIQUE(record_id, flag)
);

CREATE TABLE comments (
	record_id  TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	user       TEXT NOT NULL,
	body       TEXT NOT NULL
);

CREATE TABLE flag_groups (
	label TEXT NOT NULL,
	flag  TEXT NOT NULL,
	UNIQUE(label, flag)
);

CREATE INDEX idx_flags_flag ON flags(flag);
CREATE INDEX idx_comments_record ON comments(record_id);
`

// registryID marks rows that belong to the registry rather than a record.
const registryID = ""

// WriteSQLite writes the manifest to a fresh SQLite database at path,
// replacing any existing file. Rows owned by the registry itself carry an
// empty record_id.
func (m *Manifest) WriteSQLite(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("manifest: replace %s: %w", path, err)
	}
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("manifest: open db: %w", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		return fmt.Errorf("manifest: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("manifest: apply schema: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("manifest: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	w, err := newSQLWriter(tx)
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.registry(m); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := w.entry(e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("manifest: commit: %w", err)
	}
	return nil
}

type sqlWriter struct {
	meta, record, flag, comment, group *sql.Stmt
}

func newSQLWriter(tx *sql.Tx) (*sqlWriter, error) {
	w := &sqlWriter{}
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&w.meta, `INSERT INTO registry (key, value) VALUES (?, ?)`},
		{&w.record, `INSERT INTO records (id, filename, path) VALUES (?, ?, ?)`},
		{&w.flag, `INSERT OR IGNORE INTO flags (record_id, flag) VALUES (?, ?)`},
		{&w.comment, `INSERT INTO comments (record_id, created_at, user, body) VALUES (?, ?, ?, ?)`},
		{&w.group, `INSERT OR IGNORE INTO flag_groups (label, flag) VALUES (?, ?)`},
	} {
		stmt, err := tx.Prepare(p.query)
		if err != nil {
			w.close()
			return nil, fmt.Errorf("manifest: prepare: %w", err)
		}
		*p.dst = stmt
	}
	return w, nil
}

func (w *sqlWriter) close() {
	for _, s := range []*sql.Stmt{w.meta, w.record, w.flag, w.comment, w.group} {
		if s != nil {
			s.Close()
		}
	}
}

func (w *sqlWriter) registry(m *Manifest) error {
	if _, err := w.meta.Exec("directory", m.Directory); err != nil {
		return fmt.Errorf("manifest: insert registry: %w", err)
	}
	if _, err := w.meta.Exec("generated_at", m.Generated.UTC().Format(models.TimestampLayout)); err != nil {
		return fmt.Errorf("manifest: insert registry: %w", err)
	}
	if err := w.flags(registryID, m.Meta.Flags); err != nil {
		return err
	}
	if err := w.comments(registryID, m.Meta.Comments); err != nil {
		return err
	}
	for label, flags := range m.Meta.Groups {
		for _, f := range flags {
			if _, err := w.group.Exec(label, f); err != nil {
				return fmt.Errorf("manifest: insert group %s: %w", label, err)
			}
		}
	}
	return nil
}

func (w *sqlWriter) entry(e Entry) error {
	id := e.ID.String()
	if _, err := w.record.Exec(id, e.Name, e.Path); err != nil {
		return fmt.Errorf("manifest: insert record %s: %w", e.Path, err)
	}
	if err := w.flags(id, e.Flags); err != nil {
		return err
	}
	return w.comments(id, e.Comments)
}

func (w *sqlWriter) flags(owner string, flags models.FlagSet) error {
	for _, f := range flags.Sorted() {
		if _, err := w.flag.Exec(owner, f); err != nil {
			return fmt.Errorf("manifest: insert flag %s: %w", f, err)
		}
	}
	return nil
}

func (w *sqlWriter) comments(owner string, cs models.Comments) error {
	for _, c := range cs.Sorted() {
		if _, err := w.comment.Exec(owner, c.Key(), c.User, c.Text); err != nil {
			return fmt.Errorf("manifest: insert comment: %w", err)
		}
	}
	return nil
}
