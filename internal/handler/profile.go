package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/ui"
	"github.com/vetlink/vetlink/internal/ui/pages"
)

type ProfileHandler struct {
	feedService   *service.FeedService
	uploadService *service.UploadService
}

func NewProfileHandler(feedService *service.FeedService, uploadService *service.UploadService) *ProfileHandler {
	return &ProfileHandler{
		feedService:   feedService,
		uploadService: uploadService,
	}
}

func (h *ProfileHandler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	posts, err := h.feedService.ByUser(user.ID)
	if err != nil {
		slog.Error("failed to load feed posts", "user_id", user.ID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	policy := h.uploadService.Policy()
	accept := policy.Extensions()
	slices.Sort(accept)

	ui.Render(w, r, pages.Profile(pages.ProfileProps{
		User:      user,
		Posts:     posts,
		CSRFToken: ctxkeys.CSRFToken(r.Context()),
		Accept:    accept,
		MaxSizeMB: max(1, policy.MaxSize()>>20),
	}))
}
