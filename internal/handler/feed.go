package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/repository"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/ui/components/photo"
	"github.com/vetlink/vetlink/internal/ui/components/toast"
)

const feedImageField = "imagem"

type FeedHandler struct {
	feedService   *service.FeedService
	uploadService *service.UploadService
}

func NewFeedHandler(feedService *service.FeedService, uploadService *service.UploadService) *FeedHandler {
	return &FeedHandler{
		feedService:   feedService,
		uploadService: uploadService,
	}
}

func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	post, err := h.feedService.Create(user.ID, r.FormValue("description"))
	if err != nil {
		if errors.Is(err, service.ErrDescriptionRequired) || errors.Is(err, service.ErrDescriptionTooLong) {
			renderFragments(w, r, http.StatusUnprocessableEntity, oob(toast.Error(err.Error()), toast.Container))
			return
		}
		slog.Error("failed to create feed post", "user_id", user.ID, "error", err)
		renderFragments(w, r, http.StatusInternalServerError, oob(toast.Error("Failed to publish post"), toast.Container))
		return
	}

	w.Header().Set("HX-Trigger", "feed-post-created")
	w.Header().Set("HX-Refresh", "true")
	slog.Info("feed post created", "user_id", user.ID, "post_id", post.ID)
	renderFragments(w, r, http.StatusCreated, oob(toast.Success("Post published."), toast.Container))
}

// ReplaceImage sets the image of one of the signed-in user's posts.
func (h *FeedHandler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	postID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || postID <= 0 {
		http.NotFound(w, r)
		return
	}

	in, err := openFilePart(w, r, feedImageField, h.uploadService.Policy().MaxSize())
	if err != nil {
		renderUploadFailure(w, r, err)
		return
	}

	result, err := h.feedService.ReplaceImage(user.ID, postID, in)
	switch {
	case errors.Is(err, repository.ErrFeedPostNotFound):
		renderFragments(w, r, http.StatusNotFound, oob(toast.Error("Post not found."), toast.Container))
		return
	case errors.Is(err, service.ErrNotPostAuthor):
		slog.Warn("feed image change by non-author", "user_id", user.ID, "post_id", postID)
		renderFragments(w, r, http.StatusForbidden, oob(toast.Error("You can only change your own posts."), toast.Container))
		return
	case err != nil && !isUploadError(err):
		slog.Error("failed to load feed post", "post_id", postID, "error", err)
		renderFragments(w, r, http.StatusInternalServerError, oob(toast.Error("Failed to update image"), toast.Container))
		return
	case err != nil:
		renderUploadFailure(w, r, err)
		return
	}

	w.Header().Set("HX-Trigger", "feed-image-updated")
	renderFragments(w, r, http.StatusOK,
		oob(photo.Image(photo.FeedImageID(postID), result.URL, ""), photo.SlotTarget(photo.FeedSlotID(postID))),
		oob(toast.Success("Image updated."), toast.Container),
	)
}
