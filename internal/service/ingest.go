package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/entity"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/repository"
)

// PersistenceObserver counts record appends.
type PersistenceObserver interface {
	ObservePersistence(ok bool)
}

// IngestResult is what one uploaded card produced.
type IngestResult struct {
	RawText string
	Record  entity.ExtractedRecord
	Stored  *entity.StoredRecord
}

// IngestService backs the record ingestion endpoint: extract, then persist.
type IngestService struct {
	extractor extraction.Extractor
	records   repository.RecordsRepository
	observer  PersistenceObserver
	log       zerolog.Logger
}

// NewIngestService creates a new instance of IngestService. records may be nil
// when no datastore is configured.
func NewIngestService(extractor extraction.Extractor, records repository.RecordsRepository, observer PersistenceObserver, log zerolog.Logger) *IngestService {
	return &IngestService{extractor: extractor, records: records, observer: observer, log: log}
}

// Ingest extracts the card and appends it to the record store. On a
// persistence failure the extraction result is still returned alongside a
// *repository.PersistenceError.
func (s *IngestService) Ingest(ctx context.Context, img extraction.Image) (*IngestResult, error) {
	ext, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	result := &IngestResult{RawText: ext.RawText, Record: ext.Record}
	if s.records == nil {
		return result, nil
	}

	stored, err := s.records.Append(ctx, ext.Record)
	s.observe(err == nil)
	if err != nil {
		var perr *repository.PersistenceError
		if !errors.As(err, &perr) {
			err = &repository.PersistenceError{Op: "append", Err: err}
		}
		s.log.Warn().Err(err).Msg("failed to persist extracted record")
		return result, err
	}
	result.Stored = stored
	s.log.Info().Int64("serial_no", stored.SerialNo).Msg("extracted record stored")
	return result, nil
}

func (s *IngestService) observe(ok bool) {
	if s.observer != nil {
		s.observer.ObservePersistence(ok)
	}
}
