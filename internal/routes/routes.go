package routes

import (
	"net/http"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vetlink/vetlink/internal/app"
	"github.com/vetlink/vetlink/internal/handler"
	"github.com/vetlink/vetlink/internal/middleware"
	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/ui"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	profile := handler.NewProfileHandler(app.FeedService, app.UploadService)
	photo := handler.NewPhotoHandler(app.UserService, app.UploadService)
	feed := handler.NewFeedHandler(app.FeedService, app.UploadService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	// Stored images. Names are random UUIDs; no directory listings.
	mux.Handle("GET "+app.Cfg.UploadURLPrefix, staticFiles(app.Cfg.UploadURLPrefix, app.PhotoStorage.Root()))
	mux.Handle("GET "+app.Cfg.FeedUploadURLPrefix, staticFiles(app.Cfg.FeedUploadURLPrefix, app.FeedStorage.Root()))

	mux.Handle("GET /static/", http.FileServerFS(ui.Static))

	// Operations
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth - rate limited
	authLimit := middleware.RateLimitAuth()

	mux.HandleFunc("GET /auth/login", middleware.RequireGuest(auth.AuthPage))
	mux.HandleFunc("POST /auth/register", authLimit(middleware.RequireGuest(auth.Register)))
	mux.HandleFunc("POST /auth/login", authLimit(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	uploadLimit := middleware.RateLimit(app.UploadLimiter)

	mux.HandleFunc("GET /perfil", middleware.RequireAuth(profile.ProfilePage))
	mux.HandleFunc("POST /perfil/alterar-foto", uploadLimit(middleware.RequireAuth(photo.ChangePhoto)))

	mux.HandleFunc("POST /feed", middleware.RequireAuth(feed.Create))
	mux.HandleFunc("POST /feed/{id}/imagem", uploadLimit(middleware.RequireAuth(feed.ReplaceImage)))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/perfil", http.StatusSeeOther)
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestLogging,
		middleware.NonceMiddleware, // must be before SecurityHeaders
		middleware.SecurityHeaders,
		middleware.Config(app.Cfg),
		middleware.CSRFProtection, // multipart uploads send the token as X-CSRF-Token
		middleware.AuthMiddleware(app.AuthService, app.UserService),
		middleware.Metrics, // must stay last: reads the pattern the mux sets on its request
	)

	return handler
}

// staticFiles serves a storage root without directory listings or
// half-written temp files.
func staticFiles(prefix, root string) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || storage.IsTemp(path.Base(r.URL.Path)) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	})
}
