package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"festhub-backend/internal/attendance"
	"festhub-backend/internal/config"
	"festhub-backend/internal/database"
	"festhub-backend/internal/handlers"
	"festhub-backend/internal/middleware"
	"festhub-backend/internal/repository"
	"festhub-backend/internal/router"
	"festhub-backend/internal/services"
	"festhub-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting FestHub Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	holidayRepo := repository.NewHolidayRepo(pool)
	attendanceRepo := repository.NewAttendanceRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClients.Tokens, jwtAuth)
	redemptionFeed := services.NewRedemptionFeed(redisClients.PubSub)
	attendanceManager := attendance.NewManager(attendanceRepo, redemptionFeed)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceManager)
	eventHandler := handlers.NewEventHandler(eventRepo)
	holidayHandler := handlers.NewHolidayHandler(holidayRepo)
	userHandler := handlers.NewUserHandler(userRepo)

	// ──── Step 5: Start Retention Janitor ────
	retention := time.Duration(cfg.SessionRetentionDays) * 24 * time.Hour
	janitor := services.NewRetentionJanitor(attendanceRepo, retention)
	janitor.Start()
	log.Printf("✓ Retention janitor started (%d day retention)", cfg.SessionRetentionDays)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		attendanceHandler,
		eventHandler,
		holidayHandler,
		userHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		janitor.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ FestHub Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
