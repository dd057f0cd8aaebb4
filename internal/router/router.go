package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paylink/internal/handler"
	"paylink/internal/middleware"
)

// Handlers bundles the HTTP handlers mounted by Setup.
type Handlers struct {
	Webhook *handler.WebhookHandler
	Sweep   *handler.SweepHandler
	Links   *handler.LinksHandler
	Slots   *handler.SlotsHandler
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, h Handlers, logger *zap.Logger, apiKey string) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	// Gateway webhook. The handler answers 405 itself for other methods.
	e.Any("/webhooks/stripe", h.Webhook.Handle)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))
	apiGroup.POST("/reminders/sweep", h.Sweep.Run)
	apiGroup.POST("/payment-links", h.Links.Issue)
	apiGroup.GET("/payment-links/:id/status", h.Links.Status)
	apiGroup.POST("/payment-links/:id/reconcile", h.Links.Reconcile)
	apiGroup.POST("/slots", h.Slots.Create)
	apiGroup.GET("/slots/:id", h.Slots.Get)
	apiGroup.POST("/slots/:id/checkout", h.Slots.Checkout)

	if apiKey == "" {
		logger.Warn("API_KEY is empty, /api routes are unauthenticated")
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
