package validation

import "errors"

// Upload validation errors, in pipeline order. All of them are safe to show
// to the uploader.
var (
	ErrUnsafeFilename      = errors.New("unsafe filename")
	ErrDisallowedExtension = errors.New("file extension not allowed")
	ErrPayloadTooLarge     = errors.New("file too large")
	ErrEmptyPayload        = errors.New("file is empty")
	ErrSignatureMismatch   = errors.New("file signature does not match a supported image type")
	ErrKindMismatch        = errors.New("file content does not match its extension")
	ErrCorruptImage        = errors.New("image is corrupt or truncated")
	ErrDimensionOutOfRange = errors.New("image dimensions out of range")
	ErrMimeMismatch        = errors.New("content type not allowed")
)

var uploadErrors = []error{
	ErrUnsafeFilename,
	ErrDisallowedExtension,
	ErrPayloadTooLarge,
	ErrEmptyPayload,
	ErrSignatureMismatch,
	ErrKindMismatch,
	ErrCorruptImage,
	ErrDimensionOutOfRange,
	ErrMimeMismatch,
}

// IsUploadError reports whether err came from ValidateImage rejecting the
// upload, as opposed to an I/O failure while reading it.
func IsUploadError(err error) bool {
	for _, target := range uploadErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
