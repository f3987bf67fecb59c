package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vetlink/vetlink/internal/ctxkeys"
	"github.com/vetlink/vetlink/internal/repository"
	"github.com/vetlink/vetlink/internal/service"
)

// AuthMiddleware reads the session cookie and puts the user in the context.
// Requests without a valid session continue as guests.
func AuthMiddleware(authService *service.AuthService, userService *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.AuthCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := authService.VerifyJWT(cookie.Value)
			if err != nil {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			user, err := userService.ByID(userID)
			if err != nil {
				if !errors.Is(err, repository.ErrUserNotFound) {
					slog.Error("failed to load session user", "user_id", userID, "error", err)
				}
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			// Security: Remove password hash from context
			user.PasswordHash = ""

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the user is authenticated
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			redirect(w, r, "/auth/login")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireGuest ensures the user is not authenticated
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			redirect(w, r, "/perfil")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// redirect uses HX-Redirect for HTMX requests so the full page navigates.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
