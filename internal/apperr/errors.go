// Package apperr defines the error conditions shared across the registry engine.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAmbiguous     = errors.New("ambiguous match")
	ErrAlreadyExists = errors.New("already exists")

	ErrFileMissing      = errors.New("file does not exist")
	ErrNothingToRecord  = errors.New("no comment or flags given")
	ErrNoIdentity       = errors.New("acting user identity unknown")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrFlagNotFound     = errors.New("flag not present")
	ErrOutsideRoot      = errors.New("path outside registry root")
	ErrNoRegistry       = errors.New("no registry found")
	ErrBrokenRegistry   = errors.New("broken registry")
	ErrInvalidDocument  = errors.New("invalid document")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// IsSoft reports whether err is a resolution miss (no match or several
// matches) that callers report as a warning rather than a failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAmbiguous)
}
