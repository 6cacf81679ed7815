package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"festhub-backend/internal/handlers"
	"festhub-backend/internal/middleware"
	"festhub-backend/internal/models"
	"festhub-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	attendanceHandler *handlers.AttendanceHandler,
	eventHandler *handlers.EventHandler,
	holidayHandler *handlers.HolidayHandler,
	userHandler *handlers.UserHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Attendance Routes ────
		r.Route("/attendance", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			// Session management is organizer-only.
			r.Route("/sessions", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleOrganizer))
				r.Post("/", attendanceHandler.CreateSession)
				r.Get("/", attendanceHandler.ListSessions)
				r.Get("/{id}", attendanceHandler.GetSession)
				r.Get("/{id}/qr", attendanceHandler.GetQRPayload)
				r.Post("/{id}/close", attendanceHandler.CloseSession)
			})

			// Any authenticated user may redeem.
			r.Post("/redemptions", attendanceHandler.Redeem)
		})

		// ──── Event Routes ────
		r.Route("/events", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", eventHandler.List)
			r.Get("/{id}", eventHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleOrganizer))
				r.Post("/", eventHandler.Create)
				r.Put("/{id}", eventHandler.Update)
				r.Delete("/{id}", eventHandler.Delete)
			})
		})

		// ──── Calendar Routes ────
		r.Route("/calendar", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/holidays", holidayHandler.List)
		})

		// ──── User & Profile Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
			r.Put("/password", userHandler.ChangePassword)
			r.Delete("/me", userHandler.DeleteMe)
		})

		// ──── WebSocket (live attendance feed) ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
