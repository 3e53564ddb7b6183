// Package server exposes the browser-facing HTTP API: marksheet upload,
// batch outcome queries, and report downloads.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marklens/marklens/internal/batch"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/export"
	"github.com/marklens/marklens/internal/session"
)

// Handler holds the dependencies for the API handlers.
type Handler struct {
	orchestrator *batch.Orchestrator
	store        session.Store
	exporter     *export.Service
	maxUploadMB  int64
	logger       *slog.Logger
}

// NewHandler creates a Handler with its collaborators injected.
func NewHandler(orchestrator *batch.Orchestrator, store session.Store, exporter *export.Service, cfg common.ServerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orchestrator: orchestrator,
		store:        store,
		exporter:     exporter,
		maxUploadMB:  cfg.MaxUploadMB,
		logger:       logger,
	}
}

// RequestID stamps each request with an ID, carried in the request context
// and echoed in the X-Request-ID response header. Clients may supply their
// own via the same header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// NewRouter wires the routes onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	router.MaxMultipartMemory = h.maxUploadMB << 20

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/batches", h.CreateBatch)
		api.GET("/batches/:batchId", h.GetBatch)
		api.GET("/batches/:batchId/record", h.GetRecord)
		api.GET("/batches/:batchId/export/xlsx", h.ExportXLSX)
		api.GET("/batches/:batchId/export/pdf", h.ExportPDF)
		api.POST("/batches/:batchId/export/pdf", h.ExportPDF)
	}
	return router
}
