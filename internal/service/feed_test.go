package service_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlink/vetlink/internal/repository"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/validation"
)

func newLocal(t *testing.T, prefix string) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "root"), prefix, validation.MustImagePolicy())
	require.NoError(t, err)
	require.NoError(t, s.EnsureRoot())
	return s
}

func TestFeedService(t *testing.T) {
	t.Parallel()
	posts := newMemPosts()
	store := newLocal(t, "/feed-uploads/")
	feed := service.NewFeedService(posts, service.NewUploadService(validation.MustImagePolicy()), store)

	_, err := feed.Create(1, "   ")
	assert.ErrorIs(t, err, service.ErrDescriptionRequired)
	_, err = feed.Create(1, strings.Repeat("x", 2001))
	assert.ErrorIs(t, err, service.ErrDescriptionTooLong)

	post, err := feed.Create(1, " first walk ")
	require.NoError(t, err)
	assert.Equal(t, "first walk", post.Description)

	in := func() service.UploadInput {
		return service.UploadInput{
			Body:        bytes.NewReader(pngImage(t, 640, 480, 0)),
			Filename:    "walk.png",
			ContentType: "image/png",
		}
	}

	_, err = feed.ReplaceImage(2, post.ID, in())
	assert.ErrorIs(t, err, service.ErrNotPostAuthor)

	_, err = feed.ReplaceImage(1, post.ID+10, in())
	assert.ErrorIs(t, err, repository.ErrFeedPostNotFound)

	res, err := feed.ReplaceImage(1, post.ID, in())
	require.NoError(t, err)

	got, err := feed.ByID(post.ID)
	require.NoError(t, err)
	require.True(t, got.HasImage())
	assert.Equal(t, res.Path, *got.Image)
	assert.Equal(t, "/feed-uploads/"+res.Path, got.ImageURL)

	list, err := feed.ByUser(1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, got.ImageURL, list[0].ImageURL)
}

func TestUserService_ReplacePhoto(t *testing.T) {
	t.Parallel()
	users := newMemUsers()
	store := newLocal(t, "/uploads/")
	svc := service.NewUserService(users, service.NewUploadService(validation.MustImagePolicy()), store)
	auth := service.NewAuthService(users, "s", false, 0)

	u, err := auth.Register("Ana", "ana@example.com", "correct horse battery")
	require.NoError(t, err)

	first, err := svc.ReplacePhoto(u.ID, service.UploadInput{
		Body: bytes.NewReader(pngImage(t, 200, 200, 0)), Filename: "a.png", ContentType: "image/png",
	})
	require.NoError(t, err)

	second, err := svc.ReplacePhoto(u.ID, service.UploadInput{
		Body: bytes.NewReader(pngImage(t, 300, 300, 0)), Filename: "b.png", ContentType: "image/png",
	})
	require.NoError(t, err)
	require.NotNil(t, second.Previous)
	assert.Equal(t, first.Path, *second.Previous)

	files, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{second.Path}, files)

	got, err := svc.ByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+second.Path, got.PhotoURL)

	_, err = svc.ReplacePhoto(u.ID+1, service.UploadInput{
		Body: bytes.NewReader(pngImage(t, 200, 200, 0)), Filename: "a.png", ContentType: "image/png",
	})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	files, err = store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
