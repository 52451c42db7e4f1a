package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/cardscan/internal/config"
	"github.com/octobees/cardscan/internal/dto"
	"github.com/octobees/cardscan/internal/handler"
	middlewarepkg "github.com/octobees/cardscan/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Records *handler.RecordsHandler
	Capture *handler.CaptureHandler
	Metrics http.Handler
	Health  dto.HealthStatus
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		health := handlers.Health
		health.Status = "ok"
		return handler.Success(c, http.StatusOK, "service healthy", health)
	})
	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}

	limiter := middlewarepkg.CaptureRateLimiter(cfg.RateLimitCapture)

	e.POST("/process-image", handlers.Records.ProcessImage, limiter)
	e.GET("/get-extracted-data", handlers.Records.History)
	e.GET("/records/:serial_no/contact.vcf", handlers.Records.ContactVCF)

	if handlers.Capture != nil {
		e.POST("/capture", handlers.Capture.Capture, limiter)
		e.GET("/last-capture", handlers.Capture.LastCapture)
	}
}
