package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dating-app/internal/auth"
	"dating-app/internal/config"
	"dating-app/internal/database"
	"dating-app/internal/handlers"
	"dating-app/internal/presence"
	"dating-app/internal/services"
	"dating-app/internal/websocket"
	"dating-app/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize presence tracking and services
	tracker := presence.NewTracker()
	authService := auth.NewService(db, cfg)
	messageService := services.NewMessageService(db, tracker)

	// Initialize real-time hubs
	hubManager := websocket.NewManager(db)
	presenceHub := websocket.NewPresenceHub(tracker)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	messageHandlers := handlers.NewMessageHandlers(messageService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, messageService, hubManager, presenceHub, cfg.Server.AllowedOrigin)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, messageHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 Conversation endpoint: ws://localhost%s/ws/messages", cfg.Server.Port)
	logger.Info("📡 Presence endpoint: ws://localhost%s/ws/presence", cfg.Server.Port)
	printAPIEndpoints()

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, messageHandlers *handlers.MessageHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Account routes
	mux.HandleFunc("/account/register", authHandlers.Register)
	mux.HandleFunc("/account/login", authHandlers.Login)

	// Message routes
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			messageHandlers.GetMessages(w, r)
		case http.MethodPost:
			messageHandlers.CreateMessage(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Message sub-routes
	mux.HandleFunc("/messages/", func(w http.ResponseWriter, r *http.Request) {
		// /messages/thread/{username}
		if r.Method == http.MethodGet {
			messageHandlers.GetThread(w, r)
			return
		}

		// /messages/{id} DELETE
		if r.Method == http.MethodDelete {
			messageHandlers.DeleteMessage(w, r)
			return
		}

		http.Error(w, "endpoint not found", http.StatusNotFound)
	})

	// WebSocket routes
	mux.HandleFunc("/ws/messages", wsHandlers.HandleMessages)
	mux.HandleFunc("/ws/presence", wsHandlers.HandlePresence)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /account/register")
	logger.Info("   POST /account/login")
	logger.Info("   GET  /messages?container=inbox|outbox|unread")
	logger.Info("   POST /messages")
	logger.Info("   GET  /messages/thread/{username}")
	logger.Info("   DELETE /messages/{id}")
}
