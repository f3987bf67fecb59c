package validation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/image/webp"
)

// ReadChunkSize is how much of the upload is pulled from the stream per read.
const ReadChunkSize = 1 << 20

var ErrReadFailed = errors.New("failed to read upload")

// ValidatedImage is an upload that passed every check. Data is owned by the
// caller and decodes as Kind.
type ValidatedImage struct {
	Data      []byte
	Extension string // lower-case, with leading dot
	Kind      ImageKind
	Width     int
	Height    int
}

// Size returns the payload length in bytes.
func (v *ValidatedImage) Size() int64 {
	return int64(len(v.Data))
}

var forbiddenFilenameParts = []string{"..", "/", "\\", "\x00", "<", ">", ":", "\"", "|", "?", "*"}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateImage runs the upload checks in order, cheapest first, and stops at
// the first failure:
//
//  1. filename sanity (before any byte is read)
//  2. extension allow-list
//  3. bounded read of at most MaxSize+1 bytes
//  4. magic-byte signature, and kind vs extension when the policy is strict
//  5. structural decode and dimension bounds
//  6. declared content type allow-list
//
// It never touches the filesystem or the database.
func ValidateImage(r io.Reader, filename, contentType string, policy *ImagePolicy) (*ValidatedImage, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}

	ext, err := extension(filename)
	if err != nil {
		return nil, err
	}
	if !policy.AllowsExtension(ext) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowedExtension, ext)
	}

	data, err := readLimited(r, policy.MaxSize())
	if err != nil {
		return nil, err
	}

	kind := DetectKind(data, policy.Signatures())
	if kind == KindUnknown {
		return nil, ErrSignatureMismatch
	}
	if policy.StrictKindMatch() && KindForExtension(ext) != kind {
		return nil, fmt.Errorf("%w: %s content named %s", ErrKindMismatch, kind, ext)
	}

	width, height, err := decode(data, kind, policy)
	if err != nil {
		return nil, err
	}

	if !policy.AllowsMIMEType(normalizeContentType(contentType)) {
		return nil, fmt.Errorf("%w: %q", ErrMimeMismatch, contentType)
	}

	return &ValidatedImage{
		Data:      data,
		Extension: ext,
		Kind:      kind,
		Width:     width,
		Height:    height,
	}, nil
}

// CheckStoredImage re-runs the content checks (signature, decode, dimensions)
// on bytes already on disk. Used by maintenance tooling.
func CheckStoredImage(data []byte, policy *ImagePolicy) (ImageKind, error) {
	kind := DetectKind(data, policy.Signatures())
	if kind == KindUnknown {
		return kind, ErrSignatureMismatch
	}
	if _, _, err := decode(data, kind, policy); err != nil {
		return kind, err
	}
	return kind, nil
}

// DetectKind returns the kind of the first matching signature, in table order.
func DetectKind(data []byte, signatures []Signature) ImageKind {
	for _, sig := range signatures {
		if sig.Matches(data) {
			return sig.Kind
		}
	}
	return KindUnknown
}

func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: no filename provided", ErrUnsafeFilename)
	}
	for _, part := range forbiddenFilenameParts {
		if strings.Contains(filename, part) {
			return fmt.Errorf("%w: contains %q", ErrUnsafeFilename, part)
		}
	}
	for _, r := range filename {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return fmt.Errorf("%w: contains control or format character", ErrUnsafeFilename)
		}
	}

	base, _, _ := strings.Cut(filename, ".")
	if reservedNames[strings.ToUpper(strings.TrimSpace(base))] {
		return fmt.Errorf("%w: reserved device name", ErrUnsafeFilename)
	}
	return nil
}

func extension(filename string) (string, error) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return "", fmt.Errorf("%w: missing extension", ErrDisallowedExtension)
	}
	return strings.ToLower(filename[i:]), nil
}

// readLimited pulls at most limit+1 bytes in ReadChunkSize steps; seeing the
// extra byte is enough to know the upload is too large.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	buf := bytes.NewBuffer(make([]byte, 0, min(limit+1, ReadChunkSize)))
	chunk := make([]byte, ReadChunkSize)

	for {
		n, err := lr.Read(chunk)
		buf.Write(chunk[:n])
		if int64(buf.Len()) > limit {
			return nil, fmt.Errorf("%w: maximum is %d bytes", ErrPayloadTooLarge, limit)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, fmt.Errorf("%w: request body limit reached", ErrPayloadTooLarge)
			}
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
	}

	if buf.Len() == 0 {
		return nil, ErrEmptyPayload
	}
	return buf.Bytes(), nil
}

// decode reads the header first and checks the dimension bounds before a
// full decode, so a huge declared canvas is never allocated.
func decode(data []byte, kind ImageKind, policy *ImagePolicy) (int, int, error) {
	var (
		decodeConfig func(io.Reader) (image.Config, error)
		decodeImage  func(io.Reader) (image.Image, error)
	)
	switch kind {
	case KindJPEG:
		decodeConfig, decodeImage = jpeg.DecodeConfig, jpeg.Decode
	case KindPNG:
		decodeConfig, decodeImage = png.DecodeConfig, png.Decode
	case KindWEBP:
		decodeConfig, decodeImage = webp.DecodeConfig, webp.Decode
	default:
		return 0, 0, ErrSignatureMismatch
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width < policy.MinWidth() || cfg.Height < policy.MinHeight() ||
		cfg.Width > policy.MaxWidth() || cfg.Height > policy.MaxHeight() {
		return 0, 0, fmt.Errorf("%w: %dx%d, allowed %dx%d to %dx%d", ErrDimensionOutOfRange,
			cfg.Width, cfg.Height, policy.MinWidth(), policy.MinHeight(), policy.MaxWidth(), policy.MaxHeight())
	}

	if _, err := decodeImage(bytes.NewReader(data)); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

func normalizeContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
