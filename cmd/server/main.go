package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/assetdesk/rights-api/internal/access"
	"github.com/assetdesk/rights-api/internal/auth"
	"github.com/assetdesk/rights-api/internal/auth/oidc"
	"github.com/assetdesk/rights-api/internal/config"
	"github.com/assetdesk/rights-api/internal/handlers"
	"github.com/assetdesk/rights-api/internal/kv"
	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/metrics"
	"github.com/assetdesk/rights-api/internal/middleware"
	"github.com/assetdesk/rights-api/internal/notify"
	"github.com/assetdesk/rights-api/internal/rights"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize logger
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting rights API server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to the configured KV backend
	var store kv.Store
	switch cfg.KV.Backend {
	case "postgres":
		pgStore, err := kv.NewPostgresStore(ctx, cfg.KV.PostgresDSN)
		if err != nil {
			logger.Error("Failed to connect to postgres", err, nil)
			os.Exit(1)
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("Connected to postgres KV store", nil)
	default:
		client, err := kv.NewRedis(ctx, cfg.KV.RedisAddr, cfg.KV.RedisPassword, cfg.KV.RedisDB)
		if err != nil {
			logger.Error("Failed to connect to redis", err, map[string]interface{}{
				"addr": cfg.KV.RedisAddr,
			})
			os.Exit(1)
		}
		defer client.Close()
		store = kv.NewRedisStore(client)
		logger.Info("Connected to redis KV store", map[string]interface{}{
			"addr": cfg.KV.RedisAddr,
		})
	}

	// Access tables drive permissions and role metadata
	tables := access.NewLoader(cfg.Access.SheetURL, cfg.Access.FilePath, cfg.Access.CacheTTL)
	resolver := auth.NewResolver(tables, cfg.Rights.RestrictedHosts, logger)

	// Initialize OIDC provider if configured
	var oidcProvider *oidc.Provider
	if cfg.Auth.Configured(cfg.Session.Secret) {
		var err error
		oidcProvider, err = oidc.NewProvider(
			ctx,
			cfg.Auth.IssuerURL,
			cfg.Auth.ClientID,
			cfg.Auth.ClientSecret,
			cfg.Auth.RedirectURL,
			cfg.Auth.TenantID,
			cfg.Auth.Scopes,
		)
		if err != nil {
			logger.Error("Failed to initialize OIDC provider", err, nil)
			// Continue without OIDC; auth routes answer 503
		} else {
			logger.Info("OIDC provider initialized", map[string]interface{}{
				"issuer": cfg.Auth.IssuerURL,
			})
		}
	} else {
		logger.Warn("Auth not fully configured; auth routes will answer 503", nil)
	}

	// Initialize services
	hub := notify.NewHub()
	notifier := notify.NewService(store, logger, hub)
	rightsSvc := rights.NewService(store, notifier, tables, logger, cfg.Rights.PropagationDelay)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(oidcProvider, resolver, cfg.Session, cfg.Auth.LogoutURL, logger)
	rightsHandlers := handlers.NewRightsHandlers(rightsSvc)
	messageHandlers := handlers.NewMessageHandlers(notifier)
	systemMetricsHandlers := handlers.NewSystemMetricsHandlers(logger)

	rateLimiter := middleware.NewRateLimiter(1000, 1*time.Minute)
	sessionAuth := auth.Middleware([]byte(cfg.Session.Secret), cfg.Session.CookieName, resolver)

	// Setup router
	router := mux.NewRouter()

	// Apply middleware (order matters)
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Health check (no auth)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "rights-api",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	// Prometheus and system metrics (no auth, public)
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/api/system-metrics", systemMetricsHandlers.GetSystemMetrics).Methods("GET")

	// Auth routes (no session required)
	router.HandleFunc("/auth/login", authHandlers.Login).Methods("GET")
	router.HandleFunc("/auth/callback", authHandlers.Callback).Methods("POST")
	router.HandleFunc("/auth/logout", authHandlers.Logout).Methods("GET")

	// Current user endpoint (session required)
	router.Handle("/auth/user", sessionAuth(http.HandlerFunc(authHandlers.User))).Methods("GET")

	// Rights request routes (session required, rate limited)
	rightsRouter := router.PathPrefix("/rightsrequests").Subrouter()
	rightsRouter.Use(sessionAuth)
	rightsRouter.Use(middleware.RateLimitMiddleware(rateLimiter))
	rightsRouter.HandleFunc("", rightsHandlers.Create).Methods("POST")
	rightsRouter.HandleFunc("", rightsHandlers.ListOwn).Methods("GET")
	rightsRouter.HandleFunc("/status", rightsHandlers.SubmitterStatus).Methods("POST")
	rightsRouter.HandleFunc("/all", rightsHandlers.ListAll).Methods("GET")
	rightsRouter.HandleFunc("/reviews", rightsHandlers.ListReviews).Methods("GET")
	rightsRouter.HandleFunc("/reviews/reviewers", rightsHandlers.ListReviewers).Methods("GET")
	rightsRouter.HandleFunc("/reviews/assign", rightsHandlers.Assign).Methods("POST")
	rightsRouter.HandleFunc("/reviews/assign-to", rightsHandlers.AssignTo).Methods("POST")
	rightsRouter.HandleFunc("/reviews/status", rightsHandlers.ReviewStatus).Methods("POST")

	// Message routes (session required)
	messagesRouter := router.PathPrefix("/api/messages").Subrouter()
	messagesRouter.Use(sessionAuth)
	messagesRouter.HandleFunc("", messageHandlers.List).Methods("GET")
	messagesRouter.HandleFunc("", messageHandlers.Create).Methods("POST")
	messagesRouter.HandleFunc("/ws", messageHandlers.MessageFeed(hub, logger)).Methods("GET")
	messagesRouter.HandleFunc("/{id}", messageHandlers.Get).Methods("GET")
	messagesRouter.HandleFunc("/{id}", messageHandlers.Update).Methods("POST")
	messagesRouter.HandleFunc("/{id}", messageHandlers.Delete).Methods("DELETE")

	// CORS handler wrapper
	//
	// Important: we wrap the router at the HTTP handler level (instead of router.Use),
	// so CORS headers and OPTIONS preflight responses work even when gorilla/mux would
	// otherwise return 404 for method-mismatches (e.g. OPTIONS on a GET-only route).
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades need direct access to the underlying connection
		// (Hijacker interface) so we bypass the CORS wrapper for them
		if r.Header.Get("Upgrade") == "websocket" {
			router.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		allowed := false
		allowAll := false

		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowAll = true
				allowed = true
				break
			} else if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if allowAll && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}

		// Only set credentials if we're using a specific origin (not "*")
		if allowed && (!allowAll || origin != "") {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", joinStrings(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", joinStrings(cfg.CORS.AllowedHeaders, ", "))

		// Preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		router.ServeHTTP(w, r)
	})

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address": addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
	}

	logger.Info("Server stopped", nil)
}

func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
