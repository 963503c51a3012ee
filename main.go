package main

import (
	"log"
	"net/http"
	"time"

	"gpu-price-monitor/internal/api"
	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/database"
	"gpu-price-monitor/internal/repository"
	"gpu-price-monitor/internal/scraper"
	"gpu-price-monitor/internal/stores"
	"gpu-price-monitor/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	repo := repository.NewProductRepository(db)
	hub := ws.NewHub()
	orch := scraper.NewOrchestrator(cfg, repo, hub, stores.Factory(cfg))

	// Daily retention sweep for old price history entries
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
			if _, err := repo.PurgeHistory(cutoff); err != nil {
				log.Printf("[main] history retention sweep: %v", err)
			}
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Live dashboard event stream
	r.GET("/ws", hub.HandleWS)

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, orch, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
