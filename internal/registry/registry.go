// Package registry implements the per-directory metadata registry: the
// registry object with its own comments, flags and groups, and the file
// records it tracks.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/document"
	"github.com/starford/filerecords/internal/index"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/resolver"
	"github.com/starford/filerecords/internal/storage"
)

// Registry is a loaded store. Directory is the directory that holds the store
// directory; tracked files must live below it.
type Registry struct {
	BaseRecord

	Directory string
	StoreDir  string

	env   Env
	store *storage.FS // rooted at StoreDir
	files *storage.FS // rooted at Directory
	index *index.Table
	meta  *models.RegistryMeta
}

// Open loads the registry governing dir, searching dir and its ancestors. If
// none exists a new one is created in dir.
func Open(dir string, env Env) (*Registry, error) {
	env, err := env.withDefaults()
	if err != nil {
		return nil, err
	}
	start := env.abs(dir)
	storeDir, err := resolver.Find(start, env.Names.StoreDir)
	if errors.Is(err, apperr.ErrNoRegistry) {
		env.Logger.Info("no registry found, creating one", slog.String("directory", start))
		storeDir, err = document.InitStore(start, env.Names)
	}
	if err != nil {
		return nil, err
	}
	return load(storeDir, env)
}

// Load loads the registry governing dir without creating one. It returns
// apperr.ErrNoRegistry when neither dir nor an ancestor holds a store.
func Load(dir string, env Env) (*Registry, error) {
	env, err := env.withDefaults()
	if err != nil {
		return nil, err
	}
	storeDir, err := resolver.Find(env.abs(dir), env.Names.StoreDir)
	if err != nil {
		return nil, err
	}
	return load(storeDir, env)
}

// Init creates a registry in dir, even when an ancestor already has one. An
// existing store in dir is loaded as is.
func Init(dir string, env Env) (*Registry, error) {
	env, err := env.withDefaults()
	if err != nil {
		return nil, err
	}
	start := env.abs(dir)
	storeDir, err := document.InitStore(start, env.Names)
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		env.Logger.Warn("registry already exists", slog.String("store", storeDir))
	case err != nil:
		return nil, err
	default:
		env.Logger.Info("registry created", slog.String("directory", start))
	}
	return load(storeDir, env)
}

func load(storeDir string, env Env) (*Registry, error) {
	store, err := storage.NewFS(storeDir)
	if err != nil {
		return nil, err
	}
	files, err := storage.NewFS(filepath.Dir(store.Root()))
	if err != nil {
		return nil, err
	}
	tbl, err := index.Load(store, env.Names.IndexFile)
	if err != nil {
		return nil, err
	}
	meta, err := document.LoadRegistry(store, env.Names.MetaFile)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		Directory: files.Root(),
		StoreDir:  store.Root(),
		env:       env,
		store:     store,
		files:     files,
		index:     tbl,
		meta:      meta,
	}
	r.BaseRecord = BaseRecord{env: &r.env, comments: &meta.Comments, flags: &meta.Flags}
	return r, nil
}

// Workdir returns the directory relative paths are resolved against.
func (r *Registry) Workdir() string { return r.env.Workdir }

// Now reads the registry clock.
func (r *Registry) Now() time.Time { return r.env.Now() }

// Logger returns the registry's logger.
func (r *Registry) Logger() *slog.Logger { return r.env.Logger }

// Save writes the index and then the registry document.
func (r *Registry) Save() error {
	if err := index.Save(r.store, r.env.Names.IndexFile, r.index); err != nil {
		return fmt.Errorf("registry: save index: %w", err)
	}
	if err := document.SaveRegistry(r.store, r.env.Names.MetaFile, r.meta); err != nil {
		return fmt.Errorf("registry: save metadata: %w", err)
	}
	return nil
}

// AddFlags adds flags to the registry itself, expanding group labels.
func (r *Registry) AddFlags(flags ...string) []string {
	expanded := r.meta.Groups.Expand(flags...)
	r.addFlags(expanded)
	return expanded
}

// AddGroup defines label as shorthand for flags plus its own group tag and
// registers those flags in the vocabulary. Redefining a label replaces it.
func (r *Registry) AddGroup(label string, flags ...string) ([]string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("registry: empty group label: %w", apperr.ErrUnsupportedValue)
	}
	if r.meta.Groups == nil {
		r.meta.Groups = models.Groups{}
	}
	members := r.meta.Groups.Define(label, flags...)
	r.meta.Flags.Add(members...)
	r.env.Logger.Debug("group defined", slog.String("label", label), slog.Any("flags", members))
	return members, nil
}

// Groups returns a copy of the group definitions.
func (r *Registry) Groups() models.Groups {
	out := make(models.Groups, len(r.meta.Groups))
	for label, flags := range r.meta.Groups {
		out[label] = append([]string(nil), flags...)
	}
	return out
}

// Meta returns a copy of the registry document.
func (r *Registry) Meta() models.RegistryMeta {
	return models.RegistryMeta{
		Directory: r.meta.Directory,
		Comments:  r.Comments(),
		Flags:     models.NewFlagSet(r.Flags()...),
		Groups:    r.Groups(),
	}
}

// Len returns the number of tracked files.
func (r *Registry) Len() int { return r.index.Len() }

// Records loads every record in index order.
func (r *Registry) Records() ([]*FileRecord, error) {
	return r.records(r.index.Rows())
}

// Add starts tracking path. The file must exist, lie inside the registry
// directory and not be tracked yet. A comment or at least one flag is
// required.
func (r *Registry) Add(path, comment string, flags []string) (*FileRecord, error) {
	if comment == "" && len(flags) == 0 {
		return nil, fmt.Errorf("registry: add %s: %w", path, apperr.ErrNothingToRecord)
	}
	t, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	exists, err := r.files.Exists(filepath.FromSlash(t.rootRel))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("registry: %s: %w", path, apperr.ErrFileMissing)
	}
	if _, taken := r.index.ByRelpath(t.relpath); taken {
		return nil, fmt.Errorf("registry: %s within %s: %w", t.rootRel, r.Directory, apperr.ErrAlreadyExists)
	}

	row := models.IndexRow{ID: uuid.New(), Filename: filepath.Base(t.abs), Relpath: t.relpath}
	rec := newFileRecord(r, row, models.NewRecordMeta())
	if comment != "" {
		if _, err := rec.AddComment(comment); err != nil {
			return nil, err
		}
	}
	if len(flags) > 0 {
		rec.AddFlags(flags...)
	}
	if err := document.InitRecordFile(r.store, row.ID); err != nil {
		return nil, fmt.Errorf("registry: create record %s: %w", row.ID, err)
	}
	if err := r.index.Append(row); err != nil {
		return nil, err
	}
	if err := rec.Save(); err != nil {
		return nil, err
	}
	r.env.Logger.Info("record added", slog.Any("record", rec))
	return rec, nil
}

// Update adds a comment and flags to the single record matching query.
func (r *Registry) Update(query, comment string, flags []string) (*FileRecord, error) {
	if comment == "" && len(flags) == 0 {
		return nil, fmt.Errorf("registry: update %s: %w", query, apperr.ErrNothingToRecord)
	}
	rec, err := r.Record(query)
	if err != nil {
		return nil, err
	}
	return r.update(rec, comment, flags)
}

func (r *Registry) update(rec *FileRecord, comment string, flags []string) (*FileRecord, error) {
	if comment == "" && len(flags) == 0 {
		return nil, fmt.Errorf("registry: update %s: %w", rec.Path(), apperr.ErrNothingToRecord)
	}
	if comment != "" {
		if _, err := rec.AddComment(comment); err != nil {
			return nil, err
		}
	}
	if len(flags) > 0 {
		rec.AddFlags(flags...)
	}
	if err := rec.Save(); err != nil {
		return nil, err
	}
	r.env.Logger.Info("record updated", slog.Any("record", rec))
	return rec, nil
}

// Comment updates the record tracking path, or adds one when path is an
// untracked file on disk. Otherwise path is looked up as a query; when that
// matches nothing the add fails with apperr.ErrFileMissing.
func (r *Registry) Comment(path, comment string, flags []string) (*FileRecord, error) {
	t, resolveErr := r.resolve(path)
	if resolveErr == nil {
		if row, ok := r.index.ByRelpath(t.relpath); ok {
			rec, err := r.record(row)
			if err != nil {
				return nil, err
			}
			return r.update(rec, comment, flags)
		}
		exists, err := r.files.Exists(filepath.FromSlash(t.rootRel))
		if err != nil {
			return nil, err
		}
		if exists {
			return r.Add(path, comment, flags)
		}
	}
	rec, err := r.Update(path, comment, flags)
	if errors.Is(err, apperr.ErrNotFound) {
		if resolveErr != nil {
			return nil, resolveErr
		}
		return nil, fmt.Errorf("registry: %s: %w", path, apperr.ErrFileMissing)
	}
	return rec, err
}

// Remove stops tracking the record matching query and deletes its file unless
// keepFile is set. A file already gone from disk is not an error.
func (r *Registry) Remove(query string, keepFile bool) (*FileRecord, error) {
	rec, err := r.Record(query)
	if err != nil {
		return nil, err
	}
	if !keepFile {
		err := r.files.Delete(filepath.FromSlash(rec.Path()))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.env.Logger.Warn("file not found on disk, removing record only", slog.String("path", rec.Path()))
		case err != nil:
			return nil, fmt.Errorf("registry: remove %s: %w", rec.Path(), err)
		}
	}
	if err := document.DeleteRecord(r.store, rec.ID); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("registry: remove record %s: %w", rec.ID, err)
		}
		r.env.Logger.Warn("record document missing", slog.String("id", rec.ID.String()))
	}
	if err := r.index.Remove(rec.ID); err != nil {
		return nil, err
	}
	if err := r.Save(); err != nil {
		return nil, err
	}
	r.env.Logger.Info("record removed", slog.String("path", rec.Path()), slog.Bool("keep_file", keepFile))
	return rec, nil
}

// Move retargets the record matching query to next, keeping its id. Unless
// keepFile is set the file is renamed on disk too. A next naming an existing
// directory moves the file into it.
func (r *Registry) Move(query, next string, keepFile bool) (*FileRecord, error) {
	rec, err := r.Record(query)
	if err != nil {
		return nil, err
	}
	t, err := r.resolve(next)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(t.abs); err == nil && info.IsDir() {
		if t, err = r.resolve(filepath.Join(t.abs, rec.Filename)); err != nil {
			return nil, err
		}
	}

	oldPath, oldRelpath, oldFilename := rec.Path(), rec.Relpath, rec.Filename
	filename := filepath.Base(t.abs)
	if err := r.index.Move(rec.ID, t.relpath, filename); err != nil {
		return nil, fmt.Errorf("registry: move %s: %w", oldPath, err)
	}
	if !keepFile {
		if err := r.moveFile(oldPath, t.rootRel); err != nil {
			if rerr := r.index.Move(rec.ID, oldRelpath, oldFilename); rerr != nil {
				return nil, errors.Join(err, rerr)
			}
			return nil, err
		}
	}
	rec.Relpath, rec.Filename = t.relpath, filename
	if err := r.Save(); err != nil {
		return nil, err
	}
	r.env.Logger.Info("record moved", slog.String("from", oldPath), slog.String("to", rec.Path()))
	return rec, nil
}

func (r *Registry) moveFile(from, to string) error {
	exists, err := r.files.Exists(filepath.FromSlash(to))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("registry: move target %s: %w", to, apperr.ErrAlreadyExists)
	}
	if err := r.files.Move(filepath.FromSlash(from), filepath.FromSlash(to)); err != nil {
		return fmt.Errorf("registry: move %s: %w", from, err)
	}
	return nil
}

// Lookup returns the records matching query. A path that resolves to a
// tracked file wins; otherwise every record whose stored path contains query
// matches.
func (r *Registry) Lookup(query string) ([]*FileRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if t, err := r.resolve(query); err == nil {
		if row, ok := r.index.ByRelpath(t.relpath); ok {
			rec, err := r.record(row)
			if err != nil {
				return nil, err
			}
			return []*FileRecord{rec}, nil
		}
	}
	rows := r.index.Containing(strings.TrimPrefix(filepath.ToSlash(query), "./"))
	if len(rows) > 1 {
		r.env.Logger.Warn("more than one record found", slog.String("query", query), slog.Int("matches", len(rows)))
	}
	return r.records(rows)
}

// Record returns the single record matching query. No match yields
// apperr.ErrNotFound, several yield apperr.ErrAmbiguous.
func (r *Registry) Record(query string) (*FileRecord, error) {
	recs, err := r.Lookup(query)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("registry: no record for %s: %w", query, apperr.ErrNotFound)
	case 1:
		return recs[0], nil
	default:
		return nil, fmt.Errorf("registry: %d records match %s: %w", len(recs), query, apperr.ErrAmbiguous)
	}
}

// Clear deletes every record. The registry's own metadata is kept.
func (r *Registry) Clear() (int, error) {
	rows := r.index.Rows()
	for _, row := range rows {
		if err := document.DeleteRecord(r.store, row.ID); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("registry: clear %s: %w", row.ID, err)
		}
	}
	r.index.Reset()
	if err := r.Save(); err != nil {
		return 0, err
	}
	r.env.Logger.Info("registry cleared", slog.Int("records", len(rows)))
	return len(rows), nil
}

// Destroy removes the store directory. Tracked files are left alone and the
// registry must not be used afterwards.
func (r *Registry) Destroy() error {
	if filepath.Base(r.StoreDir) != r.env.Names.StoreDir {
		return fmt.Errorf("registry: refusing to destroy %s: %w", r.StoreDir, apperr.ErrUnsupportedValue)
	}
	if err := os.RemoveAll(r.StoreDir); err != nil {
		return fmt.Errorf("registry: destroy: %w", err)
	}
	r.env.Logger.Info("registry destroyed", slog.String("store", r.StoreDir))
	return nil
}

func (r *Registry) record(row models.IndexRow) (*FileRecord, error) {
	meta, err := document.LoadRecord(r.store, row.ID)
	if err != nil {
		return nil, fmt.Errorf("registry: load record %s: %w", row.ID, err)
	}
	return newFileRecord(r, row, meta), nil
}

func (r *Registry) records(rows []models.IndexRow) ([]*FileRecord, error) {
	out := make([]*FileRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := r.record(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// rootRelative converts a store-relative path to one relative to Directory.
func (r *Registry) rootRelative(relpath string) string {
	abs := filepath.Join(r.StoreDir, filepath.FromSlash(relpath))
	rel, err := filepath.Rel(r.Directory, abs)
	if err != nil {
		return relpath
	}
	return filepath.ToSlash(rel)
}

type target struct {
	abs     string
	relpath string // relative to StoreDir, slash separated
	rootRel string // relative to Directory, slash separated
}

func (r *Registry) resolve(path string) (target, error) {
	abs := r.env.abs(path)
	rootRel, err := filepath.Rel(r.Directory, abs)
	if err != nil || rootRel == "." || rootRel == ".." || strings.HasPrefix(rootRel, ".."+string(filepath.Separator)) {
		return target{}, fmt.Errorf("registry: %s not below %s: %w", path, r.Directory, apperr.ErrOutsideRoot)
	}
	rootRel = filepath.ToSlash(rootRel)
	if first, _, _ := strings.Cut(rootRel, "/"); first == r.env.Names.StoreDir {
		return target{}, fmt.Errorf("registry: %s is inside the store: %w", path, apperr.ErrOutsideRoot)
	}
	relpath, err := filepath.Rel(r.StoreDir, abs)
	if err != nil {
		return target{}, fmt.Errorf("registry: %s: %w", path, err)
	}
	return target{abs: abs, relpath: filepath.ToSlash(relpath), rootRel: rootRel}, nil
}
