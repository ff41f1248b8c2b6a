package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/onboarding-gateway/backend/api/handlers"
	"github.com/onboarding-gateway/backend/internal/db"
	"github.com/onboarding-gateway/backend/internal/registry"
	"github.com/onboarding-gateway/backend/internal/repository"
)

func main() {
	// Get configuration from environment
	httpAddr := getEnv("HTTP_ADDR", ":80")
	httpsAddr := getEnv("HTTPS_ADDR", ":443")
	tlsCert := getEnv("TLS_CERT", "")
	tlsKey := getEnv("TLS_KEY", "")
	upstream := getEnv("UPSTREAM_URL", "http://localhost:3000")
	dbPath := getEnv("DB_PATH", "data/events.db")

	if getEnv("LOG_LEVEL", "") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Ensure the audit database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	// Initialize the session registry
	reg := registry.New()
	defer reg.Close()

	// Initialize repository and handlers
	eventRepo := repository.NewEventRepository(database)
	wsHandler := handlers.NewWebSocketHandler(reg)
	webhookHandler := handlers.NewWebhookHandler(reg, eventRepo)
	proxyHandler := handlers.NewProxyHandler(upstream)
	healthHandler := handlers.NewHealthHandler(reg)

	// Initialize Gin router
	r := gin.Default()

	// CORS is permissive on all origins
	r.Use(corsMiddleware())

	wsHandler.RegisterRoutes(r)
	webhookHandler.RegisterRoutes(r)
	healthHandler.RegisterRoutes(r)

	// Everything else goes to the upstream application untouched
	proxyHandler.Register(r)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down gateway...")
		reg.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Plaintext listener
	go func() {
		log.Printf("Starting HTTP listener on %s", httpAddr)
		if err := r.Run(httpAddr); err != nil {
			log.Fatalf("HTTP listener failed: %v", err)
		}
	}()

	// TLS listener, when a certificate is configured
	if tlsCert != "" && tlsKey != "" {
		log.Printf("Starting HTTPS listener on %s", httpsAddr)
		if err := r.RunTLS(httpsAddr, tlsCert, tlsKey); err != nil {
			log.Fatalf("HTTPS listener failed: %v", err)
		}
	} else {
		log.Printf("TLS_CERT/TLS_KEY not set, serving plaintext only")
		select {}
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// corsMiddleware returns a permissive CORS middleware.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
