// Package router builds the Hertz server and registers the API routes.
package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"docintel-go/internal/api/handler"
	"docintel-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	"github.com/hertz-contrib/obs-opentelemetry/tracing"
)

// AdminKeyHeader carries the key required to change settings.
const AdminKeyHeader = "X-API-Key"

var errInvalidKey = errors.New("invalid api key")

// Handlers bundles every endpoint implementation.
type Handlers struct {
	Resumes     *handler.ResumeHandler
	Documents   *handler.DocumentHandler
	Professions *handler.ProfessionHandler
	Settings    *handler.SettingsHandler
}

// NewServer creates a Hertz server with OpenTelemetry tracing and the
// request logging middleware installed.
func NewServer(cfg config.ServerConfig) *server.Hertz {
	tracer, tracerCfg := tracing.NewServerTracer()
	opts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithExitWaitTime(config.GetDuration(cfg.ShutdownTimeout, 5*time.Second)),
		server.WithReadTimeout(config.GetDuration(cfg.RequestTimeout, time.Minute)),
		tracer,
	}
	if cfg.MaxUploadMB > 0 {
		// Leave room for the multipart envelope around the file.
		opts = append(opts, server.WithMaxRequestBodySize((cfg.MaxUploadMB+1)<<20))
	}
	h := server.New(opts...)
	h.Use(tracing.ServerMiddleware(tracerCfg), accessLog)
	return h
}

func accessLog(ctx context.Context, c *app.RequestContext) {
	start := time.Now()
	c.Next(ctx)
	hlog.CtxInfof(ctx, "%s %s -> %d (%s)", c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start))
}

// RegisterRoutes mounts the API under /api/v1 plus /health. Settings
// updates require one of adminKeys; with no keys configured they are refused.
func RegisterRoutes(h *server.Hertz, hs *Handlers, adminKeys []string) {
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")

	api.POST("/resumes", hs.Resumes.Upload)
	api.GET("/resumes", hs.Resumes.List)
	api.GET("/resumes/:id", hs.Resumes.Get)
	api.DELETE("/resumes/:id", hs.Resumes.Delete)

	api.POST("/documents", hs.Documents.Upload)
	api.GET("/documents/:id", hs.Documents.Get)

	api.POST("/professions/suggest", hs.Professions.Suggest)

	api.GET("/settings", hs.Settings.Get)
	api.PUT("/settings", AdminAuth(adminKeys), hs.Settings.Update)
}

// AdminAuth checks the AdminKeyHeader against keys.
func AdminAuth(keys []string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+AdminKeyHeader, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			hlog.CtxWarnf(ctx, "settings update rejected: %v", err)
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "unauthorized"})
		}),
	)
}
