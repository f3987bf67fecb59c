package handler

import (
	"net/http"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/ui/components/photo"
	"github.com/vetlink/vetlink/internal/ui/components/toast"
)

const photoField = "foto"

type PhotoHandler struct {
	userService   *service.UserService
	uploadService *service.UploadService
}

func NewPhotoHandler(userService *service.UserService, uploadService *service.UploadService) *PhotoHandler {
	return &PhotoHandler{
		userService:   userService,
		uploadService: uploadService,
	}
}

// ChangePhoto replaces the signed-in user's profile photo.
func (h *PhotoHandler) ChangePhoto(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	in, err := openFilePart(w, r, photoField, h.uploadService.Policy().MaxSize())
	if err != nil {
		renderUploadFailure(w, r, err)
		return
	}

	result, err := h.userService.ReplacePhoto(user.ID, in)
	if err != nil {
		renderUploadFailure(w, r, err)
		return
	}

	w.Header().Set("HX-Trigger", "photo-updated")
	renderFragments(w, r, http.StatusOK,
		oob(photo.Image(photo.ProfilePhotoID, result.URL, user.Name), photo.SlotTarget(photo.ProfileSlotID)),
		oob(toast.Success("Profile photo updated."), toast.Container),
	)
}
