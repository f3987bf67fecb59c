package validation

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ImageKind identifies an image format by its content, never by its name.
type ImageKind int

const (
	KindUnknown ImageKind = iota
	KindJPEG
	KindPNG
	KindWEBP
)

func (k ImageKind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindWEBP:
		return "webp"
	default:
		return "unknown"
	}
}

// Signature is a magic-byte rule. Prefix must appear at offset 0; when Marker
// is set it must also appear at MarkerOffset (WEBP: "RIFF" + size + "WEBP").
type Signature struct {
	Prefix       []byte
	Marker       []byte
	MarkerOffset int
	Kind         ImageKind
}

// Matches reports whether data carries this signature.
func (s Signature) Matches(data []byte) bool {
	if !bytes.HasPrefix(data, s.Prefix) {
		return false
	}
	if len(s.Marker) == 0 {
		return true
	}
	end := s.MarkerOffset + len(s.Marker)
	if len(data) < end {
		return false
	}
	return bytes.Equal(data[s.MarkerOffset:end], s.Marker)
}

var (
	ErrInvalidPolicy = errors.New("invalid upload policy")
)

// DefaultSignatures is the magic-byte table for the supported image kinds.
func DefaultSignatures() []Signature {
	return []Signature{
		{Prefix: []byte{0xFF, 0xD8, 0xFF}, Kind: KindJPEG},
		{Prefix: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Kind: KindPNG},
		{Prefix: []byte("RIFF"), Marker: []byte("WEBP"), MarkerOffset: 8, Kind: KindWEBP},
	}
}

// extensionKinds maps every extension the validator knows to the kind its
// bytes must carry.
var extensionKinds = map[string]ImageKind{
	".jpg":  KindJPEG,
	".jpeg": KindJPEG,
	".png":  KindPNG,
	".webp": KindWEBP,
}

// ImagePolicy is the immutable upload policy. Build it once at startup with
// NewImagePolicy and share the pointer; there are no setters.
type ImagePolicy struct {
	maxSize          int64
	extensions       map[string]bool
	mimeTypes        map[string]bool
	signatures       []Signature
	minWidth         int
	minHeight        int
	maxWidth         int
	maxHeight        int
	dirPerm          os.FileMode
	filePerm         os.FileMode
	diskSafetyMargin int64
	strictKindMatch  bool
}

// PolicyOption configures an ImagePolicy during construction.
type PolicyOption func(*ImagePolicy)

func WithMaxSize(n int64) PolicyOption {
	return func(p *ImagePolicy) { p.maxSize = n }
}

func WithExtensions(exts ...string) PolicyOption {
	return func(p *ImagePolicy) {
		p.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			p.extensions[normalizeExtension(ext)] = true
		}
	}
}

func WithMIMETypes(types ...string) PolicyOption {
	return func(p *ImagePolicy) {
		p.mimeTypes = make(map[string]bool, len(types))
		for _, t := range types {
			p.mimeTypes[strings.ToLower(strings.TrimSpace(t))] = true
		}
	}
}

func WithSignatures(sigs ...Signature) PolicyOption {
	return func(p *ImagePolicy) { p.signatures = append([]Signature(nil), sigs...) }
}

func WithDimensions(minWidth, minHeight, maxWidth, maxHeight int) PolicyOption {
	return func(p *ImagePolicy) {
		p.minWidth, p.minHeight = minWidth, minHeight
		p.maxWidth, p.maxHeight = maxWidth, maxHeight
	}
}

func WithPermissions(dir, file os.FileMode) PolicyOption {
	return func(p *ImagePolicy) { p.dirPerm, p.filePerm = dir, file }
}

func WithDiskSafetyMargin(n int64) PolicyOption {
	return func(p *ImagePolicy) { p.diskSafetyMargin = n }
}

// WithStrictKindMatch toggles the check that the sniffed image kind agrees
// with the declared extension (a PNG named photo.jpg is rejected when on).
func WithStrictKindMatch(strict bool) PolicyOption {
	return func(p *ImagePolicy) { p.strictKindMatch = strict }
}

// NewImagePolicy returns the default image policy with opts applied.
// Defaults: 5 MiB, jpg/jpeg/png/webp, 100..2048 px, 0755/0644, 100 MiB disk margin.
func NewImagePolicy(opts ...PolicyOption) (*ImagePolicy, error) {
	p := &ImagePolicy{
		maxSize:          5 << 20,
		signatures:       DefaultSignatures(),
		minWidth:         100,
		minHeight:        100,
		maxWidth:         2048,
		maxHeight:        2048,
		dirPerm:          0o755,
		filePerm:         0o644,
		diskSafetyMargin: 100 << 20,
		strictKindMatch:  true,
	}
	WithExtensions(".jpg", ".jpeg", ".png", ".webp")(p)
	WithMIMETypes("image/jpeg", "image/png", "image/webp")(p)

	for _, opt := range opts {
		opt(p)
	}

	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustImagePolicy is NewImagePolicy for package-level defaults and tests.
func MustImagePolicy(opts ...PolicyOption) *ImagePolicy {
	p, err := NewImagePolicy(opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *ImagePolicy) check() error {
	if p.maxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive", ErrInvalidPolicy)
	}
	if p.diskSafetyMargin < 0 {
		return fmt.Errorf("%w: disk safety margin must not be negative", ErrInvalidPolicy)
	}
	if p.minWidth <= 0 || p.minHeight <= 0 || p.minWidth > p.maxWidth || p.minHeight > p.maxHeight {
		return fmt.Errorf("%w: invalid dimension bounds %dx%d..%dx%d",
			ErrInvalidPolicy, p.minWidth, p.minHeight, p.maxWidth, p.maxHeight)
	}
	if len(p.extensions) == 0 || len(p.mimeTypes) == 0 {
		return fmt.Errorf("%w: extension and MIME allow-lists must not be empty", ErrInvalidPolicy)
	}

	// Every allowed extension must be reachable through the signature table.
	for ext := range p.extensions {
		kind, ok := extensionKinds[ext]
		if !ok {
			return fmt.Errorf("%w: no image kind known for extension %s", ErrInvalidPolicy, ext)
		}
		if !p.hasSignatureFor(kind) {
			return fmt.Errorf("%w: extension %s has no %s signature", ErrInvalidPolicy, ext, kind)
		}
	}
	return nil
}

func (p *ImagePolicy) hasSignatureFor(kind ImageKind) bool {
	for _, sig := range p.signatures {
		if sig.Kind == kind && len(sig.Prefix) > 0 {
			return true
		}
	}
	return false
}

func (p *ImagePolicy) MaxSize() int64          { return p.maxSize }
func (p *ImagePolicy) MinWidth() int           { return p.minWidth }
func (p *ImagePolicy) MinHeight() int          { return p.minHeight }
func (p *ImagePolicy) MaxWidth() int           { return p.maxWidth }
func (p *ImagePolicy) MaxHeight() int          { return p.maxHeight }
func (p *ImagePolicy) DirPerm() os.FileMode    { return p.dirPerm }
func (p *ImagePolicy) FilePerm() os.FileMode   { return p.filePerm }
func (p *ImagePolicy) DiskSafetyMargin() int64 { return p.diskSafetyMargin }
func (p *ImagePolicy) StrictKindMatch() bool   { return p.strictKindMatch }

// AllowsExtension expects a lower-case extension with its leading dot.
func (p *ImagePolicy) AllowsExtension(ext string) bool {
	return p.extensions[ext]
}

func (p *ImagePolicy) AllowsMIMEType(contentType string) bool {
	return p.mimeTypes[contentType]
}

// Signatures returns a copy of the ordered magic-byte table.
func (p *ImagePolicy) Signatures() []Signature {
	return append([]Signature(nil), p.signatures...)
}

// Extensions returns the allowed extensions in no particular order.
func (p *ImagePolicy) Extensions() []string {
	exts := make([]string, 0, len(p.extensions))
	for ext := range p.extensions {
		exts = append(exts, ext)
	}
	return exts
}

// KindForExtension reports the image kind an allowed extension must carry.
func KindForExtension(ext string) ImageKind {
	return extensionKinds[normalizeExtension(ext)]
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
