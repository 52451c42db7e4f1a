package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/config"
	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/handler"
	"github.com/octobees/cardscan/internal/metrics"
	"github.com/octobees/cardscan/internal/pipeline"
	"github.com/octobees/cardscan/internal/repository"
	"github.com/octobees/cardscan/internal/service"
	"github.com/octobees/cardscan/internal/session"
)

type nopCapturer struct{}

func (nopCapturer) Run(context.Context, extraction.Image) (*pipeline.Outcome, error) {
	return &pipeline.Outcome{Notice: "ok"}, nil
}

type nopExtractor struct{}

func (nopExtractor) Extract(context.Context, extraction.Image) (*extraction.Extraction, error) {
	return &extraction.Extraction{}, nil
}

func TestRegister(t *testing.T) {
	records := repository.NewMemoryRecordsRepository(repository.NewStamper(time.UTC))
	ingest := service.NewIngestService(nopExtractor{}, records, nil, zerolog.Nop())
	history := service.NewHistoryService(records, contact.NewMapper("IN"))

	e := echo.New()
	cfg := &config.Config{RateLimitCapture: config.RateLimitConfig{Requests: 1, Interval: time.Minute}}
	Register(e, cfg, Handlers{
		Records: handler.NewRecordsHandler(ingest, history, 1<<20, true),
		Capture: handler.NewCaptureHandler(nopCapturer{}, session.NewMemoryStore(), 1<<20),
		Metrics: metrics.New(nil).Handler(),
	})

	cases := map[string]struct {
		method string
		path   string
		status int
	}{
		"health":       {http.MethodGet, "/healthz", http.StatusOK},
		"metrics":      {http.MethodGet, "/metrics", http.StatusOK},
		"history":      {http.MethodGet, "/get-extracted-data", http.StatusOK},
		"vcard":        {http.MethodGet, "/records/1/contact.vcf", http.StatusNotFound},
		"last capture": {http.MethodGet, "/last-capture", http.StatusNotFound},
		"unknown":      {http.MethodGet, "/leads", http.StatusNotFound},
	}
	for name, tc := range cases {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", name, tc.status, rec.Code)
		}
	}

	// both card endpoints draw from the same bucket
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected first capture to reach the handler, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-image", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected shared limiter to reject, got %d", rec.Code)
	}
}
