package storage

import "errors"

var (
	ErrPathTraversal = errors.New("path escapes upload root")
	ErrInvalidName   = errors.New("invalid storage file name")
	ErrWriteFailed   = errors.New("failed to write file")
	ErrDeleteFailed  = errors.New("failed to delete file")
	ErrDiskUsage     = errors.New("failed to read disk usage")
	ErrNoPolicy      = errors.New("storage needs an image policy")
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save stores data under name and returns the path to persist
	Save(name string, data []byte) (string, error)

	// Delete removes the file at path; a missing file is not an error
	Delete(path string) error

	// URL returns the public URL for accessing the file
	URL(path string) string
}
