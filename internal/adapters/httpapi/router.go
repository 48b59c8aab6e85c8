// Package httpapi exposes the custody service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"custodycore/docs/openapi"
	"custodycore/internal/core"
)

// Options configures the router.
type Options struct {
	Logger core.Logger
	// RateLimitRPS enables per-client rate limiting when positive.
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
	// Health reports backend readiness on GET /healthz.
	Health func(context.Context) error
}

type handler struct {
	svc    *core.Service
	logger core.Logger
}

// NewRouter builds the gin engine serving every custody operation.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	h := &handler{svc: svc, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": err.Error()})
				return
			}
		}
		ok(c, "ok", nil)
	})
	r.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, openapi.ContentType, openapi.Spec())
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	if opts.RateLimitRPS > 0 {
		api.Use(newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).middleware())
	}

	api.GET("/equipment", h.filteredEquipment)
	api.GET("/equipment/stock", h.stockEquipment)
	api.GET("/equipment/history/:serial", h.individualHistory)
	api.POST("/equipment", h.createEquipment)
	api.POST("/equipment/assign", h.assignFromStock)

	item := api.Group("/partitions/:partition/equipment/:id")
	item.PUT("", h.saveChanges)
	item.DELETE("", h.deleteEquipment)
	item.POST("/resend", h.resendCertificate)
	item.POST("/certificate", h.uploadCertificate)

	api.GET("/certificates/:serial", h.listCertificates)
	api.POST("/reports/advanced", h.advancedReport)
	api.GET("/dashboard", h.dashboard)
	api.GET("/outbox", h.outbox)

	api.GET("/config/lists", h.configLists)
	api.POST("/config/locations/rename", h.renameLocation)
	api.POST("/config/:list", h.addConfigItem)
	api.DELETE("/config/:list/:value", h.deleteConfigItem)
	return r
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"client", c.ClientIP(),
		)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
