package routes

import (
	"net/http"
	"time"

	"github.com/templui/drive/internal/app"
	"github.com/templui/drive/internal/handler"
	"github.com/templui/drive/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	files := handler.NewFileHandler(app.FileService, app.Cfg.MaxUploadSize, app.Cfg.UploadMemory)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)

	// Auth (rate limited per client IP)
	limiter := middleware.NewRateLimiter(app.Cfg.AuthRateLimit, app.Cfg.AuthRateWindow)
	limiter.StartCleanup(5*time.Minute, app.Done())

	mux.HandleFunc("POST /users/register", limiter.Limit(auth.Register))
	mux.HandleFunc("POST /users/login", limiter.Limit(auth.Login))
	mux.HandleFunc("GET /isLogin", auth.IsLogin)
	mux.HandleFunc("POST /logout", auth.Logout)

	// OAuth
	mux.HandleFunc("GET /auth/google", limiter.Limit(auth.GoogleAuth))
	mux.HandleFunc("GET /auth/google/callback", limiter.Limit(auth.GoogleCallback))
	mux.HandleFunc("GET /auth/github", limiter.Limit(auth.GitHubAuth))
	mux.HandleFunc("GET /auth/github/callback", limiter.Limit(auth.GitHubCallback))

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("POST /upload", middleware.RequireAuth(files.Upload))
	mux.HandleFunc("GET /getfile", middleware.RequireAuth(files.List))
	mux.HandleFunc("DELETE /delete", middleware.RequireAuth(files.Delete))
	mux.HandleFunc("GET /download", middleware.RequireAuth(files.Download))
	mux.HandleFunc("GET /preview", middleware.RequireAuth(files.Preview))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.APIPrefix, // /api/... serves the same routes
		middleware.RequestID,
		middleware.Config(app.Cfg),
		middleware.AuthMiddleware(app.AuthService), // before logging so user_id is logged
		middleware.RequestLogging,
	)
}
