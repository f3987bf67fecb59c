//go:build windows

package storage

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func freeBytes(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDiskUsage, err)
	}
	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDiskUsage, path, err)
	}
	return available, nil
}
