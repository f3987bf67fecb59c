package validation_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlink/vetlink/internal/validation"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: uint8(x), G: 120, B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

// webpBytes is a 16x16 lossy WEBP with an alpha channel (VP8X, ALPH, VP8 chunks).
func webpBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/alpha16.webp")
	require.NoError(t, err)
	return data
}

// smallImages admits the 16x16 WEBP fixture.
var smallImages = validation.WithDimensions(16, 16, 2048, 2048)

// countingReader records how many bytes the validator pulled from the stream.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// zeroReader is an endless stream of zero bytes.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// failingReader returns err once its data is exhausted.
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

var maxBytesErr = http.MaxBytesError{Limit: 2}

// untouchedReader fails the test if anything reads from it.
type untouchedReader struct{ t *testing.T }

func (u untouchedReader) Read([]byte) (int, error) {
	u.t.Fatal("body was read")
	return 0, io.EOF
}

func TestValidateImage_Accepts(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	t.Run("png", func(t *testing.T) {
		t.Parallel()
		data := pngBytes(t, 800, 600)

		got, err := validation.ValidateImage(bytes.NewReader(data), "Foto.PNG", "image/png", policy)
		require.NoError(t, err)
		assert.Equal(t, ".png", got.Extension)
		assert.Equal(t, validation.KindPNG, got.Kind)
		assert.Equal(t, 800, got.Width)
		assert.Equal(t, 600, got.Height)
		assert.Equal(t, data, got.Data)
		assert.Equal(t, int64(len(data)), got.Size())
	})

	t.Run("jpeg with parameters on content type", func(t *testing.T) {
		t.Parallel()
		data := jpegBytes(t, 320, 240)

		got, err := validation.ValidateImage(bytes.NewReader(data), "me.jpeg", "image/jpeg; charset=binary", policy)
		require.NoError(t, err)
		assert.Equal(t, ".jpeg", got.Extension)
		assert.Equal(t, validation.KindJPEG, got.Kind)
	})

	t.Run("webp", func(t *testing.T) {
		t.Parallel()
		data := webpBytes(t)

		got, err := validation.ValidateImage(bytes.NewReader(data), "gato.webp", "image/webp",
			validation.MustImagePolicy(smallImages))
		require.NoError(t, err)
		assert.Equal(t, ".webp", got.Extension)
		assert.Equal(t, validation.KindWEBP, got.Kind)
		assert.Equal(t, 16, got.Width)
		assert.Equal(t, 16, got.Height)
		assert.Equal(t, data, got.Data)
	})

	t.Run("minimum and maximum dimensions are inclusive", func(t *testing.T) {
		t.Parallel()
		for _, size := range [][2]int{{100, 100}, {2048, 2048}, {100, 2048}} {
			data := pngBytes(t, size[0], size[1])
			_, err := validation.ValidateImage(bytes.NewReader(data), "edge.png", "image/png", policy)
			assert.NoError(t, err, "%dx%d", size[0], size[1])
		}
	})
}

func TestValidateImage_UnsafeFilename(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	names := []string{
		"",
		"../../etc/passwd.jpg",
		"..\\boot.ini.png",
		"dir/photo.png",
		"photo\x00.png",
		"bad\tname.png",
		"zero\u200bwidth.png",
		"photo\u202egnp.exe.png",
		"\ufeffbom.png",
		"what?.png",
		"a*b.png",
		"c:photo.png",
		"<script>.png",
		"pipe|.png",
		"quote\".png",
		"CON.png",
		"con.jpg",
		"Lpt1.webp",
		"nul.tar.png",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := validation.ValidateImage(untouchedReader{t}, name, "image/png", policy)
			assert.ErrorIs(t, err, validation.ErrUnsafeFilename)
			assert.True(t, validation.IsUploadError(err))
		})
	}
}

func TestValidateImage_DisallowedExtension(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	for _, name := range []string{"photo", "photo.", "photo.gif", "photo.png.exe", "photo.svg", "console.bmp"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := validation.ValidateImage(untouchedReader{t}, name, "image/png", policy)
			assert.ErrorIs(t, err, validation.ErrDisallowedExtension)
		})
	}
}

func TestValidateImage_Size(t *testing.T) {
	t.Parallel()

	t.Run("exactly max size is accepted", func(t *testing.T) {
		t.Parallel()
		data := pngBytes(t, 120, 120)
		policy := validation.MustImagePolicy(validation.WithMaxSize(int64(len(data))))

		_, err := validation.ValidateImage(bytes.NewReader(data), "a.png", "image/png", policy)
		assert.NoError(t, err)
	})

	t.Run("one byte over max size is rejected", func(t *testing.T) {
		t.Parallel()
		data := pngBytes(t, 120, 120)
		policy := validation.MustImagePolicy(validation.WithMaxSize(int64(len(data) - 1)))

		_, err := validation.ValidateImage(bytes.NewReader(data), "a.png", "image/png", policy)
		assert.ErrorIs(t, err, validation.ErrPayloadTooLarge)
	})

	t.Run("oversized stream is not read to the end", func(t *testing.T) {
		t.Parallel()
		policy := validation.MustImagePolicy()
		body := &countingReader{r: zeroReader{}}

		_, err := validation.ValidateImage(body, "big.png", "image/png", policy)
		require.ErrorIs(t, err, validation.ErrPayloadTooLarge)
		assert.LessOrEqual(t, body.n, policy.MaxSize()+validation.ReadChunkSize)
	})

	t.Run("six megabytes rejected before decode", func(t *testing.T) {
		t.Parallel()
		policy := validation.MustImagePolicy()
		data := append(pngBytes(t, 800, 600), make([]byte, 6<<20)...)
		body := &countingReader{r: bytes.NewReader(data)}

		_, err := validation.ValidateImage(body, "big.png", "image/png", policy)
		require.ErrorIs(t, err, validation.ErrPayloadTooLarge)
		assert.NotErrorIs(t, err, validation.ErrCorruptImage)
		assert.Less(t, body.n, int64(len(data)))
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		_, err := validation.ValidateImage(strings.NewReader(""), "a.png", "image/png", validation.MustImagePolicy())
		assert.ErrorIs(t, err, validation.ErrEmptyPayload)
	})

	t.Run("request body limit maps to too large", func(t *testing.T) {
		t.Parallel()
		body := &failingReader{data: []byte{0x89, 0x50}, err: &maxBytesErr}
		_, err := validation.ValidateImage(body, "a.png", "image/png", validation.MustImagePolicy())
		assert.ErrorIs(t, err, validation.ErrPayloadTooLarge)
	})

	t.Run("read failure is not a validation rejection", func(t *testing.T) {
		t.Parallel()
		body := &failingReader{data: []byte{0x89, 0x50}, err: errors.New("connection reset")}
		_, err := validation.ValidateImage(body, "a.png", "image/png", validation.MustImagePolicy())
		assert.ErrorIs(t, err, validation.ErrReadFailed)
		assert.False(t, validation.IsUploadError(err))
	})
}

func TestValidateImage_SignatureMismatch(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	bodies := map[string][]byte{
		"text":           []byte("hello, definitely not an image"),
		"gif":            []byte("GIF89a\x01\x00\x01\x00"),
		"short jpeg":     {0xFF, 0xD8},
		"riff not webp":  []byte("RIFF\x10\x00\x00\x00WAVEfmt "),
		"riff too short": []byte("RIFF\x10\x00\x00\x00WE"),
		"zeros":          make([]byte, 64),
	}
	declared := []struct{ name, contentType string }{
		{"a.png", "image/png"},
		{"a.jpg", "image/jpeg"},
		{"a.jpeg", "text/plain"},
		{"a.webp", "image/webp"},
	}

	for label, body := range bodies {
		for _, d := range declared {
			t.Run(label+"/"+d.name, func(t *testing.T) {
				t.Parallel()
				_, err := validation.ValidateImage(bytes.NewReader(body), d.name, d.contentType, policy)
				assert.ErrorIs(t, err, validation.ErrSignatureMismatch)
			})
		}
	}
}

func TestValidateImage_KindMismatch(t *testing.T) {
	t.Parallel()
	data := pngBytes(t, 200, 200)

	t.Run("strict policy rejects png named jpg", func(t *testing.T) {
		t.Parallel()
		_, err := validation.ValidateImage(bytes.NewReader(data), "photo.jpg", "image/jpeg", validation.MustImagePolicy())
		assert.ErrorIs(t, err, validation.ErrKindMismatch)
	})

	t.Run("lenient policy keeps the stages independent", func(t *testing.T) {
		t.Parallel()
		policy := validation.MustImagePolicy(validation.WithStrictKindMatch(false))
		got, err := validation.ValidateImage(bytes.NewReader(data), "photo.jpg", "image/jpeg", policy)
		require.NoError(t, err)
		assert.Equal(t, ".jpg", got.Extension)
		assert.Equal(t, validation.KindPNG, got.Kind)
	})
}

func TestValidateImage_CorruptImage(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	t.Run("truncated jpeg with valid magic", func(t *testing.T) {
		t.Parallel()
		data := jpegBytes(t, 400, 400)
		truncated := data[:len(data)/3]

		_, err := validation.ValidateImage(bytes.NewReader(truncated), "photo.jpg", "image/jpeg", policy)
		assert.ErrorIs(t, err, validation.ErrCorruptImage)
	})

	t.Run("jpeg magic followed by garbage", func(t *testing.T) {
		t.Parallel()
		data := append([]byte{0xFF, 0xD8, 0xFF}, bytes.Repeat([]byte{0x42}, 512)...)

		_, err := validation.ValidateImage(bytes.NewReader(data), "photo.jpg", "image/jpeg", policy)
		assert.ErrorIs(t, err, validation.ErrCorruptImage)
	})

	t.Run("truncated png", func(t *testing.T) {
		t.Parallel()
		data := pngBytes(t, 300, 300)

		_, err := validation.ValidateImage(bytes.NewReader(data[:len(data)-40]), "photo.png", "image/png", policy)
		assert.ErrorIs(t, err, validation.ErrCorruptImage)
	})

	t.Run("truncated webp", func(t *testing.T) {
		t.Parallel()
		data := webpBytes(t)

		// The header chunk survives, so only the full decode can notice.
		_, err := validation.ValidateImage(bytes.NewReader(data[:len(data)-60]), "photo.webp", "image/webp",
			validation.MustImagePolicy(smallImages))
		assert.ErrorIs(t, err, validation.ErrCorruptImage)
	})

	t.Run("webp marker with no image data", func(t *testing.T) {
		t.Parallel()
		data := []byte("RIFF\x24\x00\x00\x00WEBPVP8 \x18\x00\x00\x00garbagegarbagegarbage!!!")

		_, err := validation.ValidateImage(bytes.NewReader(data), "photo.webp", "image/webp", policy)
		assert.ErrorIs(t, err, validation.ErrCorruptImage)
	})
}

func TestValidateImage_DimensionOutOfRange(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy(validation.WithMaxSize(20 << 20))

	tests := []struct {
		name string
		w, h int
	}{
		{"50x50 below minimum", 50, 50},
		{"narrow", 99, 500},
		{"short", 500, 99},
		{"3000x3000 above maximum", 3000, 3000},
		{"wide", 2049, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := pngBytes(t, tt.w, tt.h)
			_, err := validation.ValidateImage(bytes.NewReader(data), "p.png", "image/png", policy)
			assert.ErrorIs(t, err, validation.ErrDimensionOutOfRange)
		})
	}

	t.Run("16x16 webp", func(t *testing.T) {
		t.Parallel()
		_, err := validation.ValidateImage(bytes.NewReader(webpBytes(t)), "p.webp", "image/webp", policy)
		assert.ErrorIs(t, err, validation.ErrDimensionOutOfRange)
	})
}

func TestValidateImage_MimeMismatch(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()
	data := pngBytes(t, 150, 150)

	for _, ct := range []string{"", "application/octet-stream", "image/gif", "text/html"} {
		t.Run(ct, func(t *testing.T) {
			t.Parallel()
			_, err := validation.ValidateImage(bytes.NewReader(data), "p.png", ct, policy)
			assert.ErrorIs(t, err, validation.ErrMimeMismatch)
		})
	}
}

func TestCheckStoredImage(t *testing.T) {
	t.Parallel()
	policy := validation.MustImagePolicy()

	kind, err := validation.CheckStoredImage(pngBytes(t, 128, 128), policy)
	require.NoError(t, err)
	assert.Equal(t, validation.KindPNG, kind)

	kind, err = validation.CheckStoredImage(webpBytes(t), validation.MustImagePolicy(smallImages))
	require.NoError(t, err)
	assert.Equal(t, validation.KindWEBP, kind)

	_, err = validation.CheckStoredImage([]byte("nope"), policy)
	assert.ErrorIs(t, err, validation.ErrSignatureMismatch)

	_, err = validation.CheckStoredImage(pngBytes(t, 10, 10), policy)
	assert.ErrorIs(t, err, validation.ErrDimensionOutOfRange)
}
