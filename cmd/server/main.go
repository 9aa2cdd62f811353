package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/config"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/handler"
	appMiddleware "github.com/zynx-ai/backend/internal/middleware"
	"github.com/zynx-ai/backend/internal/repository"
	"github.com/zynx-ai/backend/internal/service"
	"github.com/zynx-ai/backend/internal/ws"
	"github.com/zynx-ai/backend/pkg/ai"
	"github.com/zynx-ai/backend/pkg/billing"
	"github.com/zynx-ai/backend/pkg/sms"
)

func main() {
	// Load .env file if present (for local development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	setupLogging(cfg)

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database error")
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migration error")
	}
	log.Info().Msg("database connected & migrated")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	otpRepo := repository.NewOtpRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Services
	trialDuration := time.Duration(cfg.TrialDurationHours) * time.Hour
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AdminEmail, cfg.AdminPassword,
		trialDuration, userRepo, tokenRepo, auditRepo)

	// Seed admin user on first startup
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatal().Err(err).Msg("admin seed error")
	}

	gateway := billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	priceIDs := map[string]string{}
	for _, plan := range domain.AvailablePlans() {
		priceIDs[plan.ID] = cfg.PriceIDFor(plan.ID)
	}
	billingSvc := service.NewBillingService(userRepo, subRepo, gateway, cfg.FrontendURL, priceIDs)

	aiClient := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	chatSvc := service.NewChatService(aiClient, messageRepo, auditRepo)

	var smsGateway sms.Gateway = sms.NewMockGateway()
	otpSvc := service.NewOtpService(otpRepo, userRepo, smsGateway)

	// Periodic OTP cleanup
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			otpSvc.Cleanup(ctx)
		}
	}()

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, otpSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	plansHandler := handler.NewPlansHandler()
	adminHandler := handler.NewAdminHandler(db, userRepo, subRepo, messageRepo, auditRepo)
	healthHandler := handler.NewHealthHandler(db)
	wsChatHandler := ws.NewChatHandler(chatSvc, authSvc, userRepo)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)
	r.Post("/api/stripe/webhook", billingHandler.Webhook) // Public webhook, signature-verified

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/signup", authHandler.Signup)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/refresh", authHandler.Refresh)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		// Auth
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/profile", authHandler.Profile)
		r.With(appMiddleware.StrictRateLimiter()).Post("/api/auth/send-otp", authHandler.SendOtp)
		r.Post("/api/auth/verify-otp", authHandler.VerifyOtp)

		// Billing
		r.Post("/api/stripe/checkout-session", billingHandler.CreateCheckout)
		r.Get("/api/stripe/subscription", billingHandler.CurrentSubscription)
		r.Post("/api/stripe/cancel", billingHandler.Cancel)

		// Chat: gated on an active trial or subscription
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireEntitlement(userRepo))
			r.With(appMiddleware.ChatRateLimiter(cfg.ChatRateLimitMax)).Post("/api/chat", chatHandler.Send)
			r.Get("/api/chat/history", chatHandler.History)
			r.Get("/api/chat/export", chatHandler.Export)
			r.Delete("/api/chat/{id}", chatHandler.Delete)
			r.Delete("/api/chat", chatHandler.Clear)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/users", adminHandler.ListUsers)
			r.Get("/api/admin/users/{id}", adminHandler.GetUser)
			r.Post("/api/admin/users/{id}/ban", adminHandler.BanUser)
			r.Post("/api/admin/users/{id}/unban", adminHandler.UnbanUser)
			r.Get("/api/admin/subscriptions", adminHandler.ListSubscriptions)
			r.Get("/api/admin/audit-logs", adminHandler.ListAuditLogs)
			r.Get("/api/admin/analytics", adminHandler.Analytics)
		})
	})

	// WebSocket chat stream (auth via query param)
	r.HandleFunc("/ws/chat", wsChatHandler.Handle)

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	log.Info().Str("addr", addr).Msg("Zynx backend listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
