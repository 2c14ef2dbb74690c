// Package server wires the catalog coordinator (internal/coordinator) to
// an HTTP API, the way the teacher's internal/router wired its handlers
// and repositories together: one constructor assembling gin, CORS,
// observability, rate limiting and security middleware, and a route
// table, handed a fully-constructed coordinator rather than reaching
// into persistence itself.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"photocatalog/internal/coordinator"
	"photocatalog/internal/middleware"
)

// Server bundles the coordinator and the live SSE hub behind a gin
// engine.
type Server struct {
	engine coordinator.Engine
	hub    *eventHub
	router *gin.Engine
}

// New builds the full route table and subscribes the SSE hub to the
// coordinator's callbacks. allowedOrigins configures CORS the same way
// the teacher's router did.
func New(engine coordinator.Engine, allowedOrigins []string) *Server {
	hub := newEventHub()
	engine.SetCallbacks(coordinator.Callbacks{
		OnAssetsAdded:    hub.broadcastAssetsAdded,
		OnAssetUpdated:   hub.broadcastAssetUpdated,
		OnThumbnailReady: func(id, handle string) { hub.broadcastDerivativeReady("thumbnail", id, handle) },
		OnPreviewReady:   func(id, handle string) { hub.broadcastDerivativeReady("preview", id, handle) },
		OnThumbnailError: func(id string, err error) { hub.broadcastDerivativeError("thumbnail", id, err) },
		OnPreviewError:   func(id string, err error) { hub.broadcastDerivativeError("preview", id, err) },
	})

	s := &Server{engine: engine, hub: hub}
	s.router = s.buildRouter(allowedOrigins)
	return s
}

func (s *Server) buildRouter(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Observability())
	r.Use(middleware.SecurityHeaders())
	r.Use(otelgin.Middleware("photocatalog"))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RateLimit())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	h := &handlers{engine: s.engine}

	folders := v1.Group("/folders")
	folders.GET("/recent", h.listRecentFolders)
	folders.POST("/select", h.selectFolder)
	folders.POST("/:key/load", h.loadFolderByKey)

	v1.POST("/scan", h.scan)
	v1.POST("/scan/cancel", h.cancelScan)

	v1.GET("/assets", h.listAssets)
	v1.GET("/assets/:id", h.getAsset)
	v1.POST("/assets/flag", h.setFlagBatch)
	v1.GET("/flag-counts", h.flagCounts)

	asset := v1.Group("/assets/:id")
	asset.POST("/flag", h.setFlag)
	asset.POST("/thumbnail", h.requestThumbnail)
	asset.POST("/preview", h.requestPreview)
	asset.PATCH("/thumbnail/priority", h.updateThumbnailPriority)
	asset.PATCH("/preview/priority", h.updatePreviewPriority)
	asset.DELETE("/thumbnail", h.cancelThumbnail)
	asset.DELETE("/preview", h.cancelPreview)
	asset.POST("/thumbnail/regenerate", h.regenerateThumbnail)
	asset.POST("/preview/regenerate", h.regeneratePreview)
	asset.GET("/edit-state", h.getEditState)
	asset.PUT("/edit-state", h.saveEditState)

	v1.POST("/catalog/destroy", h.destroy)
	v1.GET("/events", s.hub.handle)

	return r
}

// Run begins serving HTTP on addr. It does not start the coordinator;
// the caller starts it beforehand.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the underlying gin engine, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}
