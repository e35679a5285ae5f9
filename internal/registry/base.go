package registry

import (
	"fmt"
	"log/slog"

	"github.com/starford/filerecords/internal/models"
)

// BaseRecord holds the comment and flag capabilities shared by the registry
// and its file records. Mutations stay in memory until Save.
type BaseRecord struct {
	env      *Env
	comments *models.Comments
	flags    *models.FlagSet
}

// AddComment appends a comment by the acting user.
func (b *BaseRecord) AddComment(text string) (models.Comment, error) {
	user, err := b.env.Identity()
	if err != nil {
		return models.Comment{}, fmt.Errorf("registry: add comment: %w", err)
	}
	return b.comments.Append(b.env.Now(), user, text), nil
}

// UndoComment removes the comment whose timestamp sorts last.
func (b *BaseRecord) UndoComment() (models.Comment, error) {
	c, err := b.comments.RemoveLast()
	if err != nil {
		return c, fmt.Errorf("registry: undo comment: %w", err)
	}
	return c, nil
}

// LastComment returns the comment whose timestamp sorts last.
func (b *BaseRecord) LastComment() (models.Comment, bool) {
	return b.comments.Last()
}

// Comments returns the comments in chronological order.
func (b *BaseRecord) Comments() models.Comments {
	return b.comments.Sorted()
}

// Flags returns the flags in lexical order.
func (b *BaseRecord) Flags() []string {
	return b.flags.Sorted()
}

// HasFlag reports whether flag is set.
func (b *BaseRecord) HasFlag(flag string) bool {
	return b.flags.Has(flag)
}

// RemoveFlags removes literal flag names; every one must be present.
func (b *BaseRecord) RemoveFlags(flags ...string) error {
	if err := b.flags.Remove(flags...); err != nil {
		return fmt.Errorf("registry: remove flags: %w", err)
	}
	return nil
}

func (b *BaseRecord) addFlags(flags []string) {
	b.env.Logger.Debug("adding flags", slog.Any("flags", flags))
	b.flags.Add(flags...)
}
