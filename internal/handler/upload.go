package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/a-h/templ"

	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/ui"
	"github.com/vetlink/vetlink/internal/ui/components/toast"
)

// multipartEnvelope is the room left for boundaries and part headers on top
// of the policy's max file size.
const multipartEnvelope = 1 << 20

var errNoFilePart = errors.New("no file part in request")

const (
	msgChooseImage  = "Choose an image to upload."
	msgBodyTooLarge = "The upload is too large."
)

// openFilePart advances the multipart stream to the file part named field.
// The part is handed to the pipeline as is, so nothing is spooled to memory
// or disk by net/http.
func openFilePart(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (service.UploadInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartEnvelope)

	mr, err := r.MultipartReader()
	if err != nil {
		return service.UploadInput{}, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return service.UploadInput{}, errNoFilePart
		}
		if err != nil {
			return service.UploadInput{}, err
		}

		filename, ok := rawFilename(part)
		if part.FormName() == field && ok {
			return service.UploadInput{
				Body:        part,
				Filename:    filename,
				ContentType: part.Header.Get("Content-Type"),
			}, nil
		}
		_ = part.Close()
	}
}

// rawFilename returns the filename exactly as the client sent it.
// Part.FileName applies filepath.Base, which would hide traversal attempts
// from the validator.
func rawFilename(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	return name, ok
}

func isUploadError(err error) bool {
	var uerr *service.UploadError
	return errors.As(err, &uerr)
}

// uploadStatus maps a pipeline failure to its HTTP status.
func uploadStatus(uerr *service.UploadError) int {
	switch uerr.Kind {
	case service.FailValidation:
		return http.StatusUnprocessableEntity
	case service.FailInsufficientSpace:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// renderUploadFailure answers a failed upload with a toast. System faults
// only ever show the generic message.
func renderUploadFailure(w http.ResponseWriter, r *http.Request, err error) {
	var uerr *service.UploadError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &uerr):
		renderFragments(w, r, uploadStatus(uerr), oob(toast.Error(uerr.UserMessage()), toast.Container))
	case errors.As(err, &maxErr):
		renderFragments(w, r, http.StatusRequestEntityTooLarge, oob(toast.Error(msgBodyTooLarge), toast.Container))
	case errors.Is(err, errNoFilePart), errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		renderFragments(w, r, http.StatusUnprocessableEntity, oob(toast.Error(msgChooseImage), toast.Container))
	default:
		slog.Error("failed to read upload", "path", r.URL.Path, "error", err)
		renderFragments(w, r, http.StatusBadRequest, oob(toast.Error(msgChooseImage), toast.Container))
	}
}

type fragment struct {
	component templ.Component
	target    string
}

func oob(c templ.Component, target string) fragment {
	return fragment{component: c, target: target}
}

// renderFragments writes status and then each fragment as an OOB swap.
func renderFragments(w http.ResponseWriter, r *http.Request, status int, fragments ...fragment) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, f := range fragments {
		ui.RenderOOB(w, r, f.component, f.target)
	}
}
