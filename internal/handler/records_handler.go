package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/dto"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/repository"
	"github.com/octobees/cardscan/internal/service"
)

// RecordsHandler serves card ingestion and the stored history.
type RecordsHandler struct {
	ingest         *service.IngestService
	history        *service.HistoryService
	maxUploadBytes int64
	persisting     bool
}

// Success messages of POST /process-image.
const (
	MessageExtractedAndSaved = "Data extracted and saved successfully"
	MessageExtracted         = "Data extracted successfully"
)

// NewRecordsHandler creates a new handler instance. persisting selects the
// success message reported by ProcessImage.
func NewRecordsHandler(ingest *service.IngestService, history *service.HistoryService, maxUploadBytes int64, persisting bool) *RecordsHandler {
	return &RecordsHandler{ingest: ingest, history: history, maxUploadBytes: maxUploadBytes, persisting: persisting}
}

// ProcessImage handles POST /process-image requests.
func (h *RecordsHandler) ProcessImage(c echo.Context) error {
	img, err := readImage(c, h.maxUploadBytes)
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	log := zerolog.Ctx(c.Request().Context())
	res, err := h.ingest.Ingest(c.Request().Context(), img)
	if err != nil {
		var (
			unavailable *extraction.ProviderUnavailableError
			malformed   *extraction.MalformedExtractionError
			persistence *repository.PersistenceError
		)
		switch {
		case errors.Is(err, extraction.ErrUnsupportedImage):
			return Error(c, http.StatusBadRequest, "uploaded file is not a supported image")
		case errors.As(err, &malformed):
			return Error(c, http.StatusBadRequest, "extracted text is not valid JSON")
		case errors.As(err, &unavailable):
			return Error(c, http.StatusBadGateway, "extraction provider unavailable")
		case errors.As(err, &persistence) && res != nil:
			log.Error().Err(err).Msg("extracted record not stored")
			return ErrorWith(c, http.StatusInternalServerError, dto.ErrorResponse{
				Error:         "failed to store extracted record",
				ExtractedText: res.RawText,
			})
		default:
			log.Error().Err(err).Msg("process image failed")
			return Error(c, http.StatusInternalServerError, "failed to process image")
		}
	}

	message := MessageExtracted
	if h.persisting {
		message = MessageExtractedAndSaved
	}
	return c.JSON(http.StatusOK, dto.ProcessImageResponse{Message: message, ExtractedText: res.RawText})
}

// History handles GET /get-extracted-data requests.
func (h *RecordsHandler) History(c echo.Context) error {
	records, err := h.history.List(c.Request().Context())
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("list records failed")
		return Error(c, http.StatusInternalServerError, "failed to fetch extracted data")
	}
	return c.JSON(http.StatusOK, records)
}

// ContactVCF handles GET /records/:serial_no/contact.vcf requests.
func (h *RecordsHandler) ContactVCF(c echo.Context) error {
	serial, err := strconv.ParseInt(c.Param("serial_no"), 10, 64)
	if err != nil || serial <= 0 {
		return Error(c, http.StatusBadRequest, "invalid serial_no")
	}

	payload, err := h.history.Contact(c.Request().Context(), serial)
	if err != nil {
		var invalid *contact.ValidationError
		switch {
		case errors.Is(err, repository.ErrRecordNotFound), errors.Is(err, service.ErrHistoryDisabled):
			return Error(c, http.StatusNotFound, "record not found")
		case errors.As(err, &invalid):
			return Error(c, http.StatusUnprocessableEntity, invalid.UserMessage())
		default:
			zerolog.Ctx(c.Request().Context()).Error().Err(err).Int64("serial_no", serial).Msg("load record failed")
			return Error(c, http.StatusInternalServerError, "failed to load record")
		}
	}

	var buf bytes.Buffer
	if err := contactstore.EncodeVCard(&buf, payload); err != nil {
		return Error(c, http.StatusInternalServerError, "failed to render contact")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="contact-%d.vcf"`, serial))
	return c.Blob(http.StatusOK, "text/vcard; charset=utf-8", buf.Bytes())
}
