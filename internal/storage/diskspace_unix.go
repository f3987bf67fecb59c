//go:build unix

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeBytes returns the bytes available to unprivileged users on the
// filesystem holding path.
func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("%w: statfs %s: %v", ErrDiskUsage, path, err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
