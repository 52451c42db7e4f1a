package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const extractedInfoDDL = `
CREATE TABLE IF NOT EXISTS extracted_info (
    serial_no     INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    business_name TEXT,
    phone         TEXT,
    phone_labels  JSONB,
    email         TEXT,
    address       TEXT,
    website       TEXT,
    job_title     TEXT,
    other_info    TEXT,
    extra_fields  JSONB,
    date          DATE NOT NULL,
    time          TEXT NOT NULL
)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the extracted_info table when missing.
func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, extractedInfoDDL); err != nil {
		return fmt.Errorf("create extracted_info: %w", err)
	}
	return nil
}
