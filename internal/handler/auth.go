package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/model"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/ui"
	"github.com/vetlink/vetlink/internal/ui/components/toast"
	"github.com/vetlink/vetlink/internal/ui/pages"
	"github.com/vetlink/vetlink/internal/validation"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) AuthPage(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.Auth(ctxkeys.CSRFToken(r.Context())))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Register(r.FormValue("name"), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyExists):
			renderFragments(w, r, http.StatusConflict, oob(toast.Error("An account with this email already exists."), toast.Container))
		case isAccountFormError(err):
			renderFragments(w, r, http.StatusUnprocessableEntity, oob(toast.Error(err.Error()), toast.Container))
		default:
			slog.Error("failed to register user", "error", err)
			renderFragments(w, r, http.StatusInternalServerError, oob(toast.Error("Failed to create account"), toast.Container))
		}
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	h.startSession(w, r, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Login(r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			renderFragments(w, r, http.StatusUnauthorized, oob(toast.Error("Invalid email or password."), toast.Container))
			return
		}
		slog.Error("failed to log in", "error", err)
		renderFragments(w, r, http.StatusInternalServerError, oob(toast.Error("Failed to sign in"), toast.Container))
		return
	}

	h.startSession(w, r, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	redirectTo(w, r, "/auth/login")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		slog.Error("failed to generate session token", "user_id", user.ID, "error", err)
		renderFragments(w, r, http.StatusInternalServerError, oob(toast.Error("Failed to sign in"), toast.Container))
		return
	}

	h.authService.SetJWTCookie(w, token, expiry)
	redirectTo(w, r, "/perfil")
}

func isAccountFormError(err error) bool {
	for _, target := range []error{
		validation.ErrNameRequired,
		validation.ErrNameTooLong,
		validation.ErrEmailRequired,
		validation.ErrEmailTooLong,
		validation.ErrEmailInvalid,
		validation.ErrPasswordTooShort,
		validation.ErrPasswordTooLong,
		validation.ErrPasswordCommon,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// redirectTo navigates the whole page, via HX-Redirect for HTMX requests.
func redirectTo(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
