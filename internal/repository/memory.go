package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/octobees/cardscan/internal/entity"
)

// MemoryRecordsRepository keeps records in process. Used when no DATABASE_URL
// is configured and in tests.
type MemoryRecordsRepository struct {
	mu      sync.Mutex
	records []entity.StoredRecord
	stamper Stamper
}

// NewMemoryRecordsRepository returns an empty store.
func NewMemoryRecordsRepository(stamper Stamper) *MemoryRecordsRepository {
	return &MemoryRecordsRepository{stamper: stamper}
}

func (r *MemoryRecordsRepository) Append(ctx context.Context, rec entity.ExtractedRecord) (*entity.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "append", Err: err}
	}
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return nil, &PersistenceError{Op: "append", Err: ErrNameRequired}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var serial int64 = 1
	for _, existing := range r.records {
		if existing.SerialNo >= serial {
			serial = existing.SerialNo + 1
		}
	}

	date, clock := r.stamper.Stamp()
	stored := entity.StoredRecord{
		SerialNo:        serial,
		ExtractedRecord: cloneRecord(rec),
		OtherInfo:       rec.ExtraFields.Lines(),
		Date:            date,
		Time:            clock,
	}
	r.records = append(r.records, stored)

	out := stored
	out.ExtractedRecord = cloneRecord(stored.ExtractedRecord)
	return &out, nil
}

func (r *MemoryRecordsRepository) ListAll(ctx context.Context) ([]entity.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.StoredRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.ExtractedRecord = cloneRecord(rec.ExtractedRecord)
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRecordsRepository) FindBySerial(ctx context.Context, serialNo int64) (*entity.StoredRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.SerialNo == serialNo {
			rec.ExtractedRecord = cloneRecord(rec.ExtractedRecord)
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

func cloneRecord(rec entity.ExtractedRecord) entity.ExtractedRecord {
	if rec.ExtraFields != nil {
		rec.ExtraFields = append(make(entity.Fields, 0, len(rec.ExtraFields)), rec.ExtraFields...)
	}
	return rec
}

var _ RecordsRepository = (*MemoryRecordsRepository)(nil)
