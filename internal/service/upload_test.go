package service_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/validation"
)

// fakeTarget keeps photo pointers in memory.
type fakeTarget struct {
	mu       sync.Mutex
	store    service.FileStore
	pointers map[int64]*string

	readErr   error
	updateErr error
	noRow     bool
}

func newFakeTarget(store service.FileStore) *fakeTarget {
	return &fakeTarget{store: store, pointers: map[int64]*string{}}
}

func (f *fakeTarget) Name() string             { return "test_photo" }
func (f *fakeTarget) Store() service.FileStore { return f.store }

func (f *fakeTarget) CurrentPath(id int64) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.pointers[id], nil
}

func (f *fakeTarget) UpdatePath(id int64, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	if f.noRow {
		return false, nil
	}
	f.pointers[id] = &path
	return true, nil
}

func (f *fakeTarget) pointer(id int64) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pointers[id]
}

// hookedStore is a real LocalStorage with injectable failures.
type hookedStore struct {
	*storage.LocalStorage
	spaceErr    error
	saveErr     error
	deleteErrOn map[string]error
}

func (h *hookedStore) HasSpace(n int64) (bool, error) {
	if h.spaceErr != nil {
		return false, h.spaceErr
	}
	return h.LocalStorage.HasSpace(n)
}

func (h *hookedStore) Save(name string, data []byte) (string, error) {
	if h.saveErr != nil {
		return "", h.saveErr
	}
	return h.LocalStorage.Save(name, data)
}

func (h *hookedStore) DeleteIfExists(path string) error {
	if err, ok := h.deleteErrOn[path]; ok {
		return err
	}
	return h.LocalStorage.DeleteIfExists(path)
}

type fixture struct {
	svc    *service.UploadService
	store  *hookedStore
	target *fakeTarget
}

func newFixture(t *testing.T, opts ...validation.PolicyOption) *fixture {
	t.Helper()
	policy := validation.MustImagePolicy(opts...)
	local, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "fotos"), "/uploads/", policy)
	require.NoError(t, err)
	require.NoError(t, local.EnsureRoot())

	store := &hookedStore{LocalStorage: local, deleteErrOn: map[string]error{}}
	return &fixture{
		svc:    service.NewUploadService(policy),
		store:  store,
		target: newFakeTarget(store),
	}
}

func (f *fixture) seedPhoto(t *testing.T, owner int64) string {
	t.Helper()
	name, err := f.store.Save(storage.SecureName("png"), pngImage(t, 200, 200, 0))
	require.NoError(t, err)
	ok, err := f.target.UpdatePath(owner, name)
	require.NoError(t, err)
	require.True(t, ok)
	return name
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	files, err := f.store.List()
	require.NoError(t, err)
	return files
}

func pngImage(t *testing.T, w, h, padTo int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x ^ y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	// Bytes after IEND are ignored by decoders.
	if padTo > buf.Len() {
		buf.Write(make([]byte, padTo-buf.Len()))
	}
	return buf.Bytes()
}

func jpegImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * y), uint8(x + y), uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func uploadErr(t *testing.T, err error) *service.UploadError {
	t.Helper()
	var uerr *service.UploadError
	require.ErrorAs(t, err, &uerr)
	return uerr
}

// panicReader fails the test if the pipeline reads the body.
type panicReader struct{ t *testing.T }

func (p panicReader) Read([]byte) (int, error) {
	p.t.Fatal("body must not be read")
	return 0, io.EOF
}

func TestReplace_ValidPNGReplacesOldPhoto(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	old := f.seedPhoto(t, 7)

	data := pngImage(t, 800, 600, 4900*1024)
	require.Less(t, len(data), 5<<20)

	res, err := f.svc.Replace(f.target, 7, service.UploadInput{
		Body:        bytes.NewReader(data),
		Filename:    "rex.png",
		ContentType: "image/png",
	})
	require.NoError(t, err)

	assert.Equal(t, ".png", res.Extension)
	assert.Equal(t, validation.KindPNG, res.Kind)
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, "/uploads/"+res.Path, res.URL)
	require.NotNil(t, res.Previous)
	assert.Equal(t, old, *res.Previous)
	assert.NotContains(t, res.Path, "rex")

	require.NotNil(t, f.target.pointer(7))
	assert.Equal(t, res.Path, *f.target.pointer(7))

	assert.Equal(t, []string{res.Path}, f.files(t), "old photo removed")
	stored, err := f.store.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestReplace_FirstPhoto(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(jpegImage(t, 320, 240)),
		Filename:    "Foto.JPG",
		ContentType: "image/jpeg; charset=binary",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Previous)
	assert.Equal(t, ".jpg", res.Extension)
	assert.Equal(t, []string{res.Path}, f.files(t))
}

func TestReplace_PersistenceFailureRollsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeTarget)
		wantErr error
	}{
		{"update error", func(ft *fakeTarget) { ft.updateErr = errors.New("database is locked") }, nil},
		{"no row updated", func(ft *fakeTarget) { ft.noRow = true }, service.ErrPointerNotUpdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			old := f.seedPhoto(t, 3)
			tt.setup(f.target)

			_, err := f.svc.Replace(f.target, 3, service.UploadInput{
				Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
				Filename:    "a.png",
				ContentType: "image/png",
			})

			uerr := uploadErr(t, err)
			assert.Equal(t, service.FailPersistence, uerr.Kind)
			assert.Equal(t, service.StatePersistingMetadata, uerr.State)
			assert.True(t, uerr.IsSystemFault())
			assert.NotContains(t, uerr.UserMessage(), "locked")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, []string{old}, f.files(t), "new file compensated, old file kept")
			require.NotNil(t, f.target.pointer(3))
			assert.Equal(t, old, *f.target.pointer(3), "pointer unchanged")
		})
	}
}

func TestReplace_CompensationFailureStillReportsPersistence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target.updateErr = errors.New("connection reset")

	// Fail every delete: the new name is random, so hook via a store that
	// refuses all deletes.
	store := &refusingDeleteStore{hookedStore: f.store}
	f.target.store = store

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})
	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailPersistence, uerr.Kind)
	assert.Equal(t, 1, store.calls)
	assert.Len(t, f.files(t), 1, "orphan left for the sweep")
}

type refusingDeleteStore struct {
	*hookedStore
	calls int
}

func (r *refusingDeleteStore) DeleteIfExists(string) error {
	r.calls++
	return storage.ErrDeleteFailed
}

func TestReplace_ReadPointerFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target.readErr = errors.New("no such table: users")

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})
	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailPersistence, uerr.Kind)
	assert.Equal(t, service.StateWriting, uerr.State)
	assert.Empty(t, f.files(t))
}

func TestReplace_OversizedPayload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	old := f.seedPhoto(t, 2)

	body := append(pngImage(t, 800, 600, 0), make([]byte, 6<<20)...)
	_, err := f.svc.Replace(f.target, 2, service.UploadInput{
		Body:        bytes.NewReader(body),
		Filename:    "big.png",
		ContentType: "image/png",
	})

	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailValidation, uerr.Kind)
	assert.Equal(t, service.StateValidating, uerr.State)
	assert.ErrorIs(t, err, validation.ErrPayloadTooLarge)
	assert.Contains(t, uerr.UserMessage(), "5 MB")
	assert.False(t, uerr.IsSystemFault())

	assert.Equal(t, []string{old}, f.files(t))
	assert.Equal(t, old, *f.target.pointer(2))
}

func TestReplace_TraversalFilenameRejectedBeforeRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        panicReader{t},
		Filename:    "../../etc/passwd.jpg",
		ContentType: "image/jpeg",
	})
	assert.ErrorIs(t, err, validation.ErrUnsafeFilename)
	assert.Equal(t, service.FailValidation, uploadErr(t, err).Kind)
	assert.Empty(t, f.files(t))
}

func TestReplace_CorruptJPEG(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	full := jpegImage(t, 400, 300)
	truncated := full[:len(full)/2]
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF}, truncated[:3])

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(truncated),
		Filename:    "broken.jpg",
		ContentType: "image/jpeg",
	})
	assert.ErrorIs(t, err, validation.ErrCorruptImage)
	assert.Equal(t, "The image is corrupt or incomplete.", uploadErr(t, err).UserMessage())
	assert.Empty(t, f.files(t))
}

func TestReplace_DimensionMessageUsesPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 50, 50, 0)),
		Filename:    "tiny.png",
		ContentType: "image/png",
	})
	assert.ErrorIs(t, err, validation.ErrDimensionOutOfRange)
	assert.Contains(t, uploadErr(t, err).UserMessage(), "100x100 and 2048x2048")
}

func TestReplace_InsufficientSpace(t *testing.T) {
	t.Parallel()
	f := newFixture(t, validation.WithDiskSafetyMargin(math.MaxInt64/2))
	old := f.seedPhoto(t, 4)

	_, err := f.svc.Replace(f.target, 4, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})

	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailInsufficientSpace, uerr.Kind)
	assert.Equal(t, service.StateSpaceChecking, uerr.State)
	assert.ErrorIs(t, err, service.ErrInsufficientSpace)
	assert.Equal(t, []string{old}, f.files(t))
	assert.Equal(t, old, *f.target.pointer(4))
}

func TestReplace_SpaceProbeFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.spaceErr = storage.ErrDiskUsage

	_, err := f.svc.Replace(f.target, 1, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})
	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailWrite, uerr.Kind)
	assert.Equal(t, service.StateSpaceChecking, uerr.State)
}

func TestReplace_WriteFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	old := f.seedPhoto(t, 5)
	f.store.saveErr = &os.PathError{Op: "open", Path: "/srv/fotos/x.png", Err: os.ErrPermission}

	_, err := f.svc.Replace(f.target, 5, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})

	uerr := uploadErr(t, err)
	assert.Equal(t, service.FailWrite, uerr.Kind)
	assert.Equal(t, service.StateWriting, uerr.State)
	assert.NotContains(t, uerr.UserMessage(), "/srv")
	assert.NotContains(t, uerr.UserMessage(), "permission")
	assert.Equal(t, old, *f.target.pointer(5))
	assert.Equal(t, []string{old}, f.files(t))
}

func TestReplace_OldFileCleanupFailureIsTolerated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	old := f.seedPhoto(t, 6)
	f.store.deleteErrOn[old] = storage.ErrDeleteFailed

	res, err := f.svc.Replace(f.target, 6, service.UploadInput{
		Body:        bytes.NewReader(pngImage(t, 300, 300, 0)),
		Filename:    "a.png",
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Path, *f.target.pointer(6))
	assert.ElementsMatch(t, []string{old, res.Path}, f.files(t), "old file orphaned, not an error")
}

func TestReplace_ConcurrentSameOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedPhoto(t, 9)

	data := pngImage(t, 150, 150, 0)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Replace(f.target, 9, service.UploadInput{
				Body:        bytes.NewReader(data),
				Filename:    "a.png",
				ContentType: "image/png",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Last write wins; whatever the pointer names must exist.
	final := f.target.pointer(9)
	require.NotNil(t, final)
	_, err := f.store.ReadFile(*final)
	assert.NoError(t, err)
}

func TestUploadState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "persisting_metadata", service.StatePersistingMetadata.String())
	assert.Equal(t, "failed", service.StateFailed.String())
	assert.Equal(t, "insufficient_space", service.FailInsufficientSpace.String())
}
