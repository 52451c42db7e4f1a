package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/cardscan/internal/entity"
)

// RecordsRepository persists extracted records and serves the history.
type RecordsRepository interface {
	Append(ctx context.Context, rec entity.ExtractedRecord) (*entity.StoredRecord, error)
	ListAll(ctx context.Context) ([]entity.StoredRecord, error)
	FindBySerial(ctx context.Context, serialNo int64) (*entity.StoredRecord, error)
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PGXRecordsRepository implements RecordsRepository using pgx.
type PGXRecordsRepository struct {
	pool    pgxPool
	stamper Stamper
}

// NewPGXRecordsRepository wires a pgx backed repository.
func NewPGXRecordsRepository(pool *pgxpool.Pool, stamper Stamper) *PGXRecordsRepository {
	return &PGXRecordsRepository{pool: pool, stamper: stamper}
}

const recordColumns = `serial_no, name, business_name, phone, phone_labels, email, address, website, job_title, other_info, extra_fields, date, time`

const insertRecordSQL = `
        INSERT INTO extracted_info (
            serial_no, name, business_name, phone, phone_labels, email, address,
            website, job_title, other_info, extra_fields, date, time
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING serial_no
    `

// Append stores rec under the next serial number. The table lock serialises
// concurrent writers so MAX+1 is never observed twice.
func (r *PGXRecordsRepository) Append(ctx context.Context, rec entity.ExtractedRecord) (*entity.StoredRecord, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return nil, &PersistenceError{Op: "append", Err: ErrNameRequired}
	}

	phoneLabels, extraFields, err := encodeRecordJSON(rec)
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: err}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: fmt.Errorf("start tx: %w", err)}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE extracted_info IN EXCLUSIVE MODE`); err != nil {
		return nil, &PersistenceError{Op: "append", Err: fmt.Errorf("lock table: %w", err)}
	}

	var serial int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(serial_no), 0) + 1 FROM extracted_info`).Scan(&serial); err != nil {
		return nil, &PersistenceError{Op: "append", Err: fmt.Errorf("next serial: %w", err)}
	}

	stamp := r.stamper.current()
	stored := &entity.StoredRecord{
		SerialNo:        serial,
		ExtractedRecord: rec,
		OtherInfo:       rec.ExtraFields.Lines(),
		Date:            stamp.Format(dateLayout),
		Time:            stamp.Format(timeLayout),
	}
	day := time.Date(stamp.Year(), stamp.Month(), stamp.Day(), 0, 0, 0, 0, time.UTC)

	err = tx.QueryRow(ctx, insertRecordSQL,
		serial,
		rec.Name,
		nullIfBlank(rec.CompanyName),
		nullIfBlank(rec.Phone.String()),
		phoneLabels,
		nullIfBlank(rec.Email),
		nullIfBlank(rec.Address),
		nullIfBlank(rec.Website),
		nullIfBlank(rec.JobTitle),
		nullIfBlank(stored.OtherInfo),
		extraFields,
		day,
		stored.Time,
	).Scan(&stored.SerialNo)
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: describePgError(err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "append", Err: fmt.Errorf("commit: %w", err)}
	}
	return stored, nil
}

// ListAll returns every record ordered by serial number.
func (r *PGXRecordsRepository) ListAll(ctx context.Context) ([]entity.StoredRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM extracted_info ORDER BY serial_no ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return records, nil
}

// FindBySerial fetches one record.
func (r *PGXRecordsRepository) FindBySerial(ctx context.Context, serialNo int64) (*entity.StoredRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM extracted_info WHERE serial_no = $1`, serialNo)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, &PersistenceError{Op: "find", Err: err}
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecords(rows pgx.Rows) ([]entity.StoredRecord, error) {
	records := make([]entity.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (*entity.StoredRecord, error) {
	var (
		rec          entity.StoredRecord
		businessName sql.NullString
		phone        sql.NullString
		phoneLabels  []byte
		email        sql.NullString
		address      sql.NullString
		website      sql.NullString
		jobTitle     sql.NullString
		otherInfo    sql.NullString
		extraFields  []byte
		day          time.Time
	)
	if err := row.Scan(
		&rec.SerialNo,
		&rec.Name,
		&businessName,
		&phone,
		&phoneLabels,
		&email,
		&address,
		&website,
		&jobTitle,
		&otherInfo,
		&extraFields,
		&day,
		&rec.Time,
	); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.CompanyName = businessName.String
	rec.Email = email.String
	rec.Address = address.String
	rec.Website = website.String
	rec.JobTitle = jobTitle.String
	rec.OtherInfo = otherInfo.String
	rec.Date = day.Format(dateLayout)

	if len(phoneLabels) > 0 {
		if err := json.Unmarshal(phoneLabels, &rec.Phone); err != nil {
			return nil, fmt.Errorf("decode phone labels: %w", err)
		}
	} else {
		rec.Phone = entity.SinglePhone(phone.String)
	}
	if len(extraFields) > 0 {
		if err := json.Unmarshal(extraFields, &rec.ExtraFields); err != nil {
			return nil, fmt.Errorf("decode extra fields: %w", err)
		}
	}
	return &rec, nil
}

func encodeRecordJSON(rec entity.ExtractedRecord) (phoneLabels, extraFields []byte, err error) {
	if rec.Phone.IsLabeled() {
		if phoneLabels, err = json.Marshal(rec.Phone); err != nil {
			return nil, nil, fmt.Errorf("encode phone labels: %w", err)
		}
	}
	if len(rec.ExtraFields) > 0 {
		if extraFields, err = json.Marshal(rec.ExtraFields); err != nil {
			return nil, nil, fmt.Errorf("encode extra fields: %w", err)
		}
	}
	return phoneLabels, extraFields, nil
}

func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502":
			return fmt.Errorf("required column %s is null: %w", pgErr.ColumnName, err)
		case "23505":
			return fmt.Errorf("duplicate serial number: %w", err)
		}
	}
	return fmt.Errorf("insert record: %w", err)
}

func nullIfBlank(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var _ RecordsRepository = (*PGXRecordsRepository)(nil)
