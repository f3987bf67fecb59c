package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vetlink/vetlink/internal/metrics"
	"github.com/vetlink/vetlink/internal/validation"
)

const tempMarker = ".tmp-"

// LocalStorage keeps uploads as flat files under a single root directory.
// Every path handed in from outside goes through Contain before it is used.
type LocalStorage struct {
	root      string // absolute, cleaned
	urlPrefix string
	policy    *validation.ImagePolicy
}

// NewLocalStorage does not touch the filesystem; call EnsureRoot at startup.
func NewLocalStorage(root, urlPrefix string, policy *validation.ImagePolicy) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty upload root", ErrInvalidName)
	}
	if policy == nil {
		return nil, ErrNoPolicy
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload root: %w", err)
	}
	if urlPrefix != "" && !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStorage{
		root:      filepath.Clean(abs),
		urlPrefix: urlPrefix,
		policy:    policy,
	}, nil
}

// Root returns the absolute upload root.
func (s *LocalStorage) Root() string {
	return s.root
}

// EnsureRoot creates the upload root and sets the policy directory mode
// explicitly, so the result does not depend on the process umask.
func (s *LocalStorage) EnsureRoot() error {
	if err := os.MkdirAll(s.root, s.policy.DirPerm()); err != nil {
		return fmt.Errorf("failed to create upload root %s: %w", s.root, err)
	}
	if err := os.Chmod(s.root, s.policy.DirPerm()); err != nil {
		return fmt.Errorf("failed to set upload root permissions: %w", err)
	}
	slog.Info("upload root ready", "root", s.root, "mode", s.policy.DirPerm().String())
	return nil
}

// HasSpace reports whether the filesystem holding the root can take needed
// bytes and still keep the policy safety margin free.
func (s *LocalStorage) HasSpace(needed int64) (bool, error) {
	free, err := freeBytes(s.root)
	if err != nil {
		return false, err
	}
	if needed < 0 {
		needed = 0
	}
	want := uint64(needed) + uint64(s.policy.DiskSafetyMargin())
	return free >= want, nil
}

// Save writes data to <root>/<name> and returns name as the path to persist.
// The bytes go to a fresh temp file first, which is synced, chmodded and
// renamed into place, so a failed write never leaves a file under name.
func (s *LocalStorage) Save(name string, data []byte) (string, error) {
	if err := checkBareName(name); err != nil {
		return "", err
	}
	dest, err := s.Contain(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("%w: %s already exists", ErrWriteFailed, name)
	}

	tmpPath := dest + tempMarker + uuid.NewString()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.policy.FilePerm())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpPath, s.policy.FilePerm()); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return name, nil
}

// Contain resolves path (relative to the root, or absolute) to its canonical
// absolute form and checks it lies strictly below the root. Symlinks are
// resolved on both sides, so a link inside the root pointing out is caught.
func (s *LocalStorage) Contain(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: NUL in path", ErrPathTraversal)
	}

	root := resolve(s.root)

	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = resolve(filepath.Clean(p))

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}
	return p, nil
}

// DeleteIfExists removes the file at path. A missing file is logged and
// ignored. A path outside the root is logged as a security event and
// returned as ErrPathTraversal without touching anything. A symlink inside
// the root is removed itself, never the file it points to.
func (s *LocalStorage) DeleteIfExists(path string) error {
	if _, err := s.Contain(path); err != nil {
		slog.Warn("refused to delete outside upload root",
			"event", "security",
			"kind", "path_traversal",
			"path", path,
			"root", s.root,
		)
		metrics.SecurityEvents.WithLabelValues("path_traversal").Inc()
		return err
	}

	target := s.join(path)
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("file already gone", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrDeleteFailed, path)
	}

	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	slog.Debug("file deleted", "path", path)
	return nil
}

// Delete implements Storage.
func (s *LocalStorage) Delete(path string) error {
	return s.DeleteIfExists(path)
}

// URL implements Storage.
func (s *LocalStorage) URL(path string) string {
	return s.urlPrefix + strings.TrimPrefix(filepath.ToSlash(path), "/")
}

// ReadFile returns the contents of a stored file.
func (s *LocalStorage) ReadFile(path string) ([]byte, error) {
	abs, err := s.Contain(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Stat returns file info for a stored file without following it out of the root.
func (s *LocalStorage) Stat(path string) (os.FileInfo, error) {
	abs, err := s.Contain(path)
	if err != nil {
		return nil, err
	}
	return os.Lstat(abs)
}

// List returns the regular files directly under the root, sorted. Leftover
// temp files from interrupted writes are included so a sweep can remove them.
func (s *LocalStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsTemp reports whether name is an unfinished write left by Save.
func IsTemp(name string) bool {
	return strings.Contains(name, tempMarker)
}

// join places path under the root without resolving symlinks. Only call it
// on paths Contain has accepted.
func (s *LocalStorage) join(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.root, path)
}

func checkBareName(name string) error {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// resolve follows symlinks as far as the path exists. For a file that does
// not exist yet the parent is resolved and the base name re-attached.
func resolve(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	if r, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(r, filepath.Base(p))
	}
	return p
}
