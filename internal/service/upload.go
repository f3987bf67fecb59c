package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vetlink/vetlink/internal/metrics"
	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/validation"
)

// UploadState is a step of the photo replacement pipeline.
type UploadState int

const (
	StateValidating UploadState = iota
	StateSpaceChecking
	StateWriting
	StatePersistingMetadata
	StateCleaningOldFile
	StateDone
	StateFailed
)

func (s UploadState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSpaceChecking:
		return "space_checking"
	case StateWriting:
		return "writing"
	case StatePersistingMetadata:
		return "persisting_metadata"
	case StateCleaningOldFile:
		return "cleaning_old_file"
	case StateDone:
		return "done"
	default:
		return "failed"
	}
}

// FailureKind classifies why an upload ended in StateFailed.
type FailureKind int

const (
	FailValidation FailureKind = iota + 1
	FailInsufficientSpace
	FailWrite
	FailPersistence
)

func (k FailureKind) String() string {
	switch k {
	case FailValidation:
		return "validation"
	case FailInsufficientSpace:
		return "insufficient_space"
	case FailWrite:
		return "write_failure"
	case FailPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

var (
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrPointerNotUpdated = errors.New("photo pointer was not updated")
)

// UploadError is returned for every failed replacement. Err keeps the full
// cause for logs; UserMessage is what the client may see.
type UploadError struct {
	State   UploadState // state the pipeline was in when it failed
	Kind    FailureKind
	Err     error
	message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed in %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UserMessage is safe to render. System faults never expose their cause.
func (e *UploadError) UserMessage() string {
	if e.message != "" {
		return e.message
	}
	return msgSystemFault
}

// IsSystemFault reports whether the failure was on our side rather than a
// problem with the uploaded file.
func (e *UploadError) IsSystemFault() bool {
	return e.Kind == FailWrite || e.Kind == FailPersistence
}

const msgSystemFault = "We could not save your image. Please try again, or contact support if it keeps happening."

// FileStore is the storage the pipeline writes to. *storage.LocalStorage
// implements it.
type FileStore interface {
	storage.Storage
	HasSpace(needed int64) (bool, error)
	// DeleteIfExists is Delete with traversal attempts reported as
	// security events.
	DeleteIfExists(path string) error
}

var _ FileStore = (*storage.LocalStorage)(nil)

// PhotoTarget is a record holding a single photo pointer, plus the store its
// files live in.
type PhotoTarget interface {
	Name() string
	Store() FileStore
	CurrentPath(ownerID int64) (*string, error)
	UpdatePath(ownerID int64, path string) (bool, error)
}

type UploadInput struct {
	Body        io.Reader
	Filename    string
	ContentType string
}

type UploadResult struct {
	Path      string
	URL       string
	Extension string
	Kind      validation.ImageKind
	Width     int
	Height    int
	Size      int64
	Previous  *string // path that was replaced, nil when there was none
}

type UploadService struct {
	policy *validation.ImagePolicy
}

func NewUploadService(policy *validation.ImagePolicy) *UploadService {
	return &UploadService{policy: policy}
}

func (s *UploadService) Policy() *validation.ImagePolicy {
	return s.policy
}

// Replace validates in, stores it as a new file and points ownerID at it.
// The previous file is deleted only once the new pointer is saved. If the
// pointer update fails, the new file is deleted again before returning.
//
// Two concurrent calls for the same owner are not serialized; the last
// pointer update wins and a sweep reclaims the loser's file.
func (s *UploadService) Replace(target PhotoTarget, ownerID int64, in UploadInput) (*UploadResult, error) {
	run := &uploadRun{
		target:  target.Name(),
		ownerID: ownerID,
		state:   StateValidating,
	}
	store := target.Store()

	img, err := validation.ValidateImage(in.Body, in.Filename, in.ContentType, s.policy)
	if err != nil {
		return nil, run.fail(FailValidation, err, s.validationMessage(err))
	}

	run.next(StateSpaceChecking)
	ok, err := store.HasSpace(img.Size())
	if err != nil {
		return nil, run.fail(FailWrite, err, "")
	}
	if !ok {
		return nil, run.fail(FailInsufficientSpace,
			fmt.Errorf("%w: need %d bytes plus %d margin", ErrInsufficientSpace, img.Size(), s.policy.DiskSafetyMargin()),
			msgNoSpace)
	}

	run.next(StateWriting)
	previous, err := target.CurrentPath(ownerID)
	if err != nil {
		return nil, run.fail(FailPersistence, fmt.Errorf("read current pointer: %w", err), "")
	}

	path, err := store.Save(storage.SecureName(img.Extension), img.Data)
	if err != nil {
		return nil, run.fail(FailWrite, err, "")
	}

	run.next(StatePersistingMetadata)
	updated, err := target.UpdatePath(ownerID, path)
	if err == nil && !updated {
		err = ErrPointerNotUpdated
	}
	if err != nil {
		s.compensate(run, store, path)
		return nil, run.fail(FailPersistence, err, "")
	}

	run.next(StateCleaningOldFile)
	if previous != nil && *previous != path {
		if err := store.DeleteIfExists(*previous); err != nil {
			slog.Warn("failed to delete replaced file",
				"target", run.target,
				"owner_id", ownerID,
				"path", *previous,
				"error", err,
			)
		}
	}

	run.next(StateDone)
	metrics.UploadsTotal.WithLabelValues(run.target, "done").Inc()
	metrics.UploadBytes.Add(float64(img.Size()))
	slog.Info("image replaced",
		"target", run.target,
		"owner_id", ownerID,
		"path", path,
		"kind", img.Kind.String(),
		"size", img.Size(),
		"width", img.Width,
		"height", img.Height,
	)

	return &UploadResult{
		Path:      path,
		URL:       store.URL(path),
		Extension: img.Extension,
		Kind:      img.Kind,
		Width:     img.Width,
		Height:    img.Height,
		Size:      img.Size(),
		Previous:  previous,
	}, nil
}

// compensate removes a file written by a run whose pointer update failed.
func (s *UploadService) compensate(run *uploadRun, store FileStore, path string) {
	if err := store.DeleteIfExists(path); err != nil {
		metrics.Compensations.WithLabelValues("failed").Inc()
		slog.Error("compensating delete failed, file orphaned",
			"target", run.target,
			"owner_id", run.ownerID,
			"path", path,
			"error", err,
		)
		return
	}
	metrics.Compensations.WithLabelValues("ok").Inc()
	slog.Info("compensating delete done", "target", run.target, "owner_id", run.ownerID, "path", path)
}

const msgNoSpace = "The server is out of storage space. Please try again later."

func (s *UploadService) validationMessage(err error) string {
	p := s.policy
	switch {
	case errors.Is(err, validation.ErrUnsafeFilename):
		return "The file name contains characters that are not allowed."
	case errors.Is(err, validation.ErrDisallowedExtension):
		return "Only JPG, JPEG, PNG and WEBP images are accepted."
	case errors.Is(err, validation.ErrPayloadTooLarge):
		return fmt.Sprintf("The image is too large. The maximum size is %s.", formatBytes(p.MaxSize()))
	case errors.Is(err, validation.ErrEmptyPayload):
		return "The file is empty."
	case errors.Is(err, validation.ErrSignatureMismatch), errors.Is(err, validation.ErrKindMismatch):
		return "The file content is not a valid JPG, PNG or WEBP image."
	case errors.Is(err, validation.ErrCorruptImage):
		return "The image is corrupt or incomplete."
	case errors.Is(err, validation.ErrDimensionOutOfRange):
		return fmt.Sprintf("The image must be between %dx%d and %dx%d pixels.",
			p.MinWidth(), p.MinHeight(), p.MaxWidth(), p.MaxHeight())
	case errors.Is(err, validation.ErrMimeMismatch):
		return "The declared file type is not accepted."
	default:
		return "The upload could not be read. Please try again."
	}
}

func formatBytes(n int64) string {
	const kib, mib = 1 << 10, 1 << 20
	switch {
	case n < mib:
		return fmt.Sprintf("%d KB", n/kib)
	case n%mib == 0:
		return fmt.Sprintf("%d MB", n/mib)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	}
}

// uploadRun tracks one pass through the pipeline for logging and metrics.
type uploadRun struct {
	target  string
	ownerID int64
	state   UploadState
}

func (r *uploadRun) next(state UploadState) {
	slog.Debug("upload state", "target", r.target, "owner_id", r.ownerID, "from", r.state.String(), "to", state.String())
	r.state = state
}

func (r *uploadRun) fail(kind FailureKind, err error, message string) *UploadError {
	uerr := &UploadError{State: r.state, Kind: kind, Err: err, message: message}

	metrics.UploadsTotal.WithLabelValues(r.target, kind.String()).Inc()
	metrics.UploadStageFailures.WithLabelValues(r.target, r.state.String()).Inc()

	attrs := []any{
		"target", r.target,
		"owner_id", r.ownerID,
		"state", r.state.String(),
		"kind", kind.String(),
		"error", err,
	}
	if uerr.IsSystemFault() {
		slog.Error("upload failed", attrs...)
	} else {
		slog.Warn("upload rejected", attrs...)
	}
	return uerr
}
