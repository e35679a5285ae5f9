// Package storage defines the file-system abstraction the registry reads and
// writes through.
package storage

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves path (relative to root) to an absolute path inside root.
	Abs(path string) (string, error)
	// Exists reports whether path exists (file or directory).
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file or directory tree at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}
