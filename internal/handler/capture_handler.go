package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/dto"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/pipeline"
	"github.com/octobees/cardscan/internal/session"
)

// Capturer runs one capture cycle.
type Capturer interface {
	Run(ctx context.Context, img extraction.Image) (*pipeline.Outcome, error)
}

// CaptureHandler drives the orchestrator over HTTP.
type CaptureHandler struct {
	capturer       Capturer
	sessions       session.Store
	maxUploadBytes int64
}

// NewCaptureHandler creates a new handler instance.
func NewCaptureHandler(capturer Capturer, sessions session.Store, maxUploadBytes int64) *CaptureHandler {
	return &CaptureHandler{capturer: capturer, sessions: sessions, maxUploadBytes: maxUploadBytes}
}

// Capture handles POST /capture requests.
func (h *CaptureHandler) Capture(c echo.Context) error {
	img, err := readImage(c, h.maxUploadBytes)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	out, err := h.capturer.Run(c.Request().Context(), img)
	if err == nil {
		return Success(c, http.StatusOK, out.Notice, out)
	}

	status := captureStatus(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("capture cycle failed")
	}
	return ErrorWith(c, status, dto.ErrorResponse{Error: out.Notice, Outcome: out})
}

func captureStatus(err error) int {
	var (
		busy        *pipeline.BusyError
		unavailable *extraction.ProviderUnavailableError
		malformed   *extraction.MalformedExtractionError
		invalid     *contact.ValidationError
		store       *contactstore.ContactStoreError
	)
	switch {
	case errors.As(err, &busy):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrSuperseded):
		return http.StatusGone
	case errors.Is(err, extraction.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.As(err, &malformed), errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unavailable), errors.As(err, &store):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// LastCapture handles GET /last-capture requests.
func (h *CaptureHandler) LastCapture(c echo.Context) error {
	capture, err := h.sessions.Load(c.Request().Context())
	if err != nil {
		if errors.Is(err, session.ErrNoCapture) {
			return Error(c, http.StatusNotFound, "no capture recorded yet")
		}
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("load last capture failed")
		return Error(c, http.StatusInternalServerError, "failed to load last capture")
	}
	return Success(c, http.StatusOK, "last capture", capture)
}
