package registry

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/models"
)

// Query selects records. Set criteria are intersected; an empty query
// selects everything.
type Query struct {
	// Pattern is a regular expression matched against the filename. A pattern
	// that does not compile is matched as a literal substring.
	Pattern string
	// Flag must be present in the record's flag set. Only one flag can be
	// given; search for a group tag ("group:<label>") to combine flags.
	Flag string
	// Glob is a doublestar pattern matched against the path relative to the
	// registry directory.
	Glob string
}

// IsZero reports whether no criteria are set.
func (q Query) IsZero() bool {
	return q == Query{}
}

type matcher struct {
	pattern *regexp.Regexp
	glob    string
}

func (q Query) compile() (*matcher, error) {
	m := &matcher{glob: q.Glob}
	if q.Pattern != "" {
		re, err := regexp.Compile(q.Pattern)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(q.Pattern))
		}
		m.pattern = re
	}
	if q.Glob != "" && !doublestar.ValidatePattern(q.Glob) {
		return nil, fmt.Errorf("registry: glob %q: %w", q.Glob, apperr.ErrUnsupportedValue)
	}
	return m, nil
}

// row applies the criteria that need only the index row.
func (m *matcher) row(row models.IndexRow, rootRel string) bool {
	if m.pattern != nil && !m.pattern.MatchString(row.Filename) {
		return false
	}
	if m.glob != "" {
		ok, err := doublestar.Match(m.glob, rootRel)
		if err != nil || !ok {
			// A glob without a separator also matches on the filename alone.
			if strings.Contains(m.glob, "/") {
				return false
			}
			if ok, _ = doublestar.Match(m.glob, path.Base(rootRel)); !ok {
				return false
			}
		}
	}
	return true
}

// Search returns the records matching q in index order.
func (r *Registry) Search(q Query) ([]*FileRecord, error) {
	if q.IsZero() {
		r.env.Logger.Warn("no search criteria specified, returning all records")
	}
	m, err := q.compile()
	if err != nil {
		return nil, err
	}
	var out []*FileRecord
	for _, row := range r.index.Rows() {
		if !m.row(row, r.rootRelative(row.Relpath)) {
			continue
		}
		rec, err := r.record(row)
		if err != nil {
			return nil, err
		}
		if q.Flag != "" && !rec.HasFlag(q.Flag) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Local is Search restricted to files directly inside the working directory.
func (r *Registry) Local(q Query) ([]*FileRecord, error) {
	recs, err := r.search(q)
	if err != nil {
		return nil, err
	}
	wd := filepath.Clean(r.env.Workdir)
	return slices.DeleteFunc(recs, func(rec *FileRecord) bool {
		return filepath.Dir(rec.AbsPath()) != wd
	}), nil
}

// Screen returns the records matching q whose file is missing from disk.
func (r *Registry) Screen(q Query) ([]*FileRecord, error) {
	r.env.Logger.Info("screening", slog.String("directory", r.Directory))
	recs, err := r.search(q)
	if err != nil {
		return nil, err
	}
	var missing []*FileRecord
	for _, rec := range recs {
		ok, err := rec.Exists()
		if err != nil {
			return nil, err
		}
		if !ok {
			r.env.Logger.Warn("tracked file missing", slog.String("path", rec.Path()), slog.String("id", rec.ID.String()))
			missing = append(missing, rec)
		}
	}
	r.env.Logger.Info("screening finished", slog.Int("missing", len(missing)))
	return missing, nil
}

// search is Search without the empty-query warning.
func (r *Registry) search(q Query) ([]*FileRecord, error) {
	if q.IsZero() {
		return r.Records()
	}
	return r.Search(q)
}
