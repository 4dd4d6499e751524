package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

// Repository persists device records.
type Repository interface {
	// Save inserts the device or updates its display name and identifiers.
	Save(ctx context.Context, d *Device) error

	// GetByID returns ErrDeviceNotFound when no record exists.
	GetByID(ctx context.Context, id DeviceID) (*Record, error)

	List(ctx context.Context) ([]Record, error)
}

// SQLiteRepository implements Repository on the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts the device keyed by (type, id). created_at is kept from
// the first insert.
func (r *SQLiteRepository) Save(ctx context.Context, d *Device) error {
	rec := d.Record()

	identifiers, err := json.Marshal(rec.CustomIdentifiers)
	if err != nil {
		return fmt.Errorf("marshalling custom identifiers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, type, display_name, custom_identifiers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET
			display_name = excluded.display_name,
			custom_identifiers = excluded.custom_identifiers,
			updated_at = excluded.updated_at`,
		rec.ID.ID,
		string(rec.ID.Type),
		rec.DisplayName,
		string(identifiers),
		formatTimestamp(rec.CreatedAt),
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("saving device %s: %w", rec.ID, err)
	}
	return nil
}

const selectRecord = `
	SELECT id, type, display_name, custom_identifiers, created_at, updated_at
	FROM devices`

// GetByID loads one record.
func (r *SQLiteRepository) GetByID(ctx context.Context, id DeviceID) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectRecord+" WHERE type = ? AND id = ?", string(id.Type), id.ID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device %s: %w", id, err)
	}
	return rec, nil
}

// List returns every record ordered by type then id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+" ORDER BY type, id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var (
		rec                  Record
		deviceType           string
		identifiers          string
		createdAt, updatedAt string
	)

	if err := s.Scan(&rec.ID.ID, &deviceType, &rec.DisplayName, &identifiers, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.ID.Type = Type(deviceType)

	if err := json.Unmarshal([]byte(identifiers), &rec.CustomIdentifiers); err != nil {
		return nil, fmt.Errorf("unmarshalling custom identifiers: %w", err)
	}

	var err error
	if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &rec, nil
}
