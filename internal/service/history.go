package service

import (
	"context"
	"errors"

	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/entity"
	"github.com/octobees/cardscan/internal/repository"
)

// ErrHistoryDisabled is returned when no record store is configured.
var ErrHistoryDisabled = errors.New("record history is not configured")

// HistoryService exposes stored records and their contact rendering.
type HistoryService struct {
	records repository.RecordsRepository
	mapper  *contact.Mapper
}

// NewHistoryService creates a new instance of HistoryService.
func NewHistoryService(records repository.RecordsRepository, mapper *contact.Mapper) *HistoryService {
	return &HistoryService{records: records, mapper: mapper}
}

// List returns every stored record ordered by serial number.
func (s *HistoryService) List(ctx context.Context) ([]entity.StoredRecord, error) {
	if s.records == nil {
		return []entity.StoredRecord{}, nil
	}
	return s.records.ListAll(ctx)
}

// Contact maps a stored record to the contact payload it would save as.
func (s *HistoryService) Contact(ctx context.Context, serialNo int64) (entity.ContactPayload, error) {
	if s.records == nil {
		return entity.ContactPayload{}, ErrHistoryDisabled
	}
	rec, err := s.records.FindBySerial(ctx, serialNo)
	if err != nil {
		return entity.ContactPayload{}, err
	}
	return s.mapper.ToContactPayload(rec.ExtractedRecord)
}
