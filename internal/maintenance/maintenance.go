// Package maintenance checks and cleans the upload roots offline.
package maintenance

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/validation"
)

// Store is the part of storage.LocalStorage the maintenance jobs need.
type Store interface {
	Root() string
	List() ([]string, error)
	ReadFile(path string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
	DeleteIfExists(path string) error
}

var _ Store = (*storage.LocalStorage)(nil)

type Finding struct {
	Path string
	Err  error
}

type VerifyReport struct {
	Checked int
	Corrupt []Finding
}

// Verify re-checks every stored file against policy: magic bytes, a full
// decode, the dimension bounds and that the content matches the extension.
func Verify(store Store, policy *validation.ImagePolicy) (*VerifyReport, error) {
	names, err := store.List()
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{}
	for _, name := range names {
		if storage.IsTemp(name) {
			continue
		}
		report.Checked++

		data, err := store.ReadFile(name)
		if err != nil {
			report.Corrupt = append(report.Corrupt, Finding{Path: name, Err: err})
			continue
		}

		kind, err := validation.CheckStoredImage(data, policy)
		if err == nil && validation.KindForExtension(filepath.Ext(name)) != kind {
			err = fmt.Errorf("%w: %s content named %s", validation.ErrKindMismatch, kind, name)
		}
		if err != nil {
			slog.Warn("stored image failed verification", "root", store.Root(), "path", name, "error", err)
			report.Corrupt = append(report.Corrupt, Finding{Path: name, Err: err})
		}
	}

	slog.Info("verify done", "root", store.Root(), "checked", report.Checked, "corrupt", len(report.Corrupt))
	return report, nil
}

type SweepOptions struct {
	DryRun bool
	// MinAge protects files of uploads still in flight: a file is written
	// before its pointer is saved.
	MinAge time.Duration
	Now    func() time.Time
}

type SweepReport struct {
	Scanned    int
	Referenced int
	Removed    []string // removed, or would be with DryRun
	TooYoung   []string
	Failed     []Finding
}

// Sweep deletes files under the root that no pointer references. These are
// left behind by failed old-file cleanups, failed compensations, concurrent
// replacements for one owner and interrupted writes.
func Sweep(store Store, referenced []string, opts SweepOptions) (*SweepReport, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	names, err := store.List()
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(referenced))
	for _, p := range referenced {
		keep[p] = true
	}

	report := &SweepReport{Scanned: len(names)}
	cutoff := opts.Now().Add(-opts.MinAge)

	for _, name := range names {
		if keep[name] {
			report.Referenced++
			continue
		}

		info, err := store.Stat(name)
		if err != nil {
			report.Failed = append(report.Failed, Finding{Path: name, Err: err})
			continue
		}
		if info.ModTime().After(cutoff) {
			report.TooYoung = append(report.TooYoung, name)
			continue
		}

		if !opts.DryRun {
			if err := store.DeleteIfExists(name); err != nil {
				report.Failed = append(report.Failed, Finding{Path: name, Err: err})
				continue
			}
		}
		slog.Info("orphan removed", "root", store.Root(), "path", name, "temp", storage.IsTemp(name), "dry_run", opts.DryRun)
		report.Removed = append(report.Removed, name)
	}

	slog.Info("sweep done",
		"root", store.Root(),
		"scanned", report.Scanned,
		"referenced", report.Referenced,
		"removed", len(report.Removed),
		"too_young", len(report.TooYoung),
		"failed", len(report.Failed),
		"dry_run", opts.DryRun,
	)
	return report, nil
}
