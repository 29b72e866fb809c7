package api

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aistate/aml-engine/internal/db"
	"github.com/aistate/aml-engine/internal/memory"
	"github.com/aistate/aml-engine/internal/pipeline"
	"github.com/aistate/aml-engine/internal/rules"
)

// Handler carries the shared engine state behind the REST surface.
type Handler struct {
	store    *db.Store
	pipeline *pipeline.Pipeline
	memory   *memory.Memory
	rules    *rules.Store
	hub      *Hub
	dataDir  string
}

// SetupRouter builds the gin engine with all routes wired.
func SetupRouter(store *db.Store, pipe *pipeline.Pipeline, mem *memory.Memory, ruleStore *rules.Store, hub *Hub, dataDir string) *gin.Engine {
	r := gin.Default()

	// CORS is configurable via ALLOWED_ORIGINS (comma-separated). Empty or
	// "*" allows everything, which is the local-dashboard default.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &Handler{
		store:    store,
		pipeline: pipe,
		memory:   mem,
		rules:    ruleStore,
		hub:      hub,
		dataDir:  dataDir,
	}

	analyzeLimiter := NewRateLimiter(10, 3)

	api := r.Group("/api/v1")
	{
		// Public endpoints.
		api.GET("/health", h.handleHealth)
		api.GET("/stream", hub.Subscribe)

		protected := api.Group("", AuthMiddleware())
		{
			protected.POST("/analyze", analyzeLimiter.Middleware(), h.handleAnalyze)

			protected.GET("/cases", h.handleListCases)
			protected.GET("/cases/:id", h.handleGetCase)
			protected.DELETE("/cases/:id", h.handleDeleteCase)
			protected.GET("/cases/:id/transactions", h.handleGetTransactions)
			protected.GET("/cases/:id/graph", h.handleGetGraph)
			protected.GET("/cases/:id/alerts", h.handleGetAlerts)
			protected.GET("/cases/:id/export", h.handleExportXLSX)

			protected.GET("/counterparties", h.handleListCounterparties)
			protected.PUT("/counterparties/:id/label", h.handleSetLabel)

			protected.GET("/learning", h.handleListLearningQueue)
			protected.POST("/learning/:id/resolve", h.handleResolveLearningItem)

			protected.POST("/rules/reload", h.handleReloadRules)
		}
	}

	// Serve the static dashboard when present.
	r.Static("/dashboard", "./public")

	return r
}
