package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/event"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	historyWriteTimeout = 5 * time.Second
)

// MotionHistoryEntry is one recorded motion reading.
type MotionHistoryEntry struct {
	ID         int64      `json:"id"`
	Property   PropertyID `json:"property"`
	Value      bool       `json:"value"`
	DetectedAt time.Time  `json:"detected_at"`
}

// MotionHistoryRepository stores motion readings.
type MotionHistoryRepository interface {
	RecordMotion(ctx context.Context, property PropertyID, value bool, detectedAt time.Time) error

	// GetHistory returns the newest entries first. limit defaults to 50 and is capped at 200.
	GetHistory(ctx context.Context, id DeviceID, limit int) ([]MotionHistoryEntry, error)

	// PruneHistory deletes entries older than now-olderThan.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteMotionHistoryRepository implements MotionHistoryRepository on the
// motion_history table.
type SQLiteMotionHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteMotionHistoryRepository creates a motion history repository.
func NewSQLiteMotionHistoryRepository(db *sql.DB) *SQLiteMotionHistoryRepository {
	return &SQLiteMotionHistoryRepository{db: db}
}

// RecordMotion appends one reading. The device must already be saved.
func (r *SQLiteMotionHistoryRepository) RecordMotion(ctx context.Context, property PropertyID, value bool, detectedAt time.Time) error {
	if err := ValidateDeviceID(property.Device); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO motion_history (device_type, device_id, property_key, value, detected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(property.Device.Type),
		property.Device.ID,
		property.Key,
		value,
		formatTimestamp(detectedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting motion history: %w", err)
	}
	return nil
}

// GetHistory returns recent readings for a device.
func (r *SQLiteMotionHistoryRepository) GetHistory(ctx context.Context, id DeviceID, limit int) ([]MotionHistoryEntry, error) {
	if err := ValidateDeviceID(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, property_key, value, detected_at
		 FROM motion_history
		 WHERE device_type = ? AND device_id = ?
		 ORDER BY detected_at DESC, id DESC
		 LIMIT ?`,
		string(id.Type),
		id.ID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying motion history: %w", err)
	}
	defer rows.Close()

	entries := make([]MotionHistoryEntry, 0, limit)
	for rows.Next() {
		entry := MotionHistoryEntry{Property: PropertyID{Device: id}}
		var detectedAt string

		if err := rows.Scan(&entry.ID, &entry.Property.Key, &entry.Value, &detectedAt); err != nil {
			return nil, fmt.Errorf("scanning motion history: %w", err)
		}
		if entry.DetectedAt, err = parseTimestamp(detectedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating motion history: %w", err)
	}
	return entries, nil
}

// PruneHistory removes readings older than olderThan.
func (r *SQLiteMotionHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM motion_history WHERE detected_at < ?",
		formatTimestamp(time.Now().Add(-olderThan)),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting motion history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// MotionHistorySink returns a bus handler that records every
// MotionDetectedEvent in repo. Write errors are logged.
func MotionHistorySink(repo MotionHistoryRepository, logger Logger) event.Handler {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(e event.Event) {
		motion, ok := e.(MotionDetectedEvent)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()

		if err := repo.RecordMotion(ctx, motion.Property, motion.Value, motion.Timestamp); err != nil {
			logger.Error("recording motion history failed",
				"device", motion.Property.Device.String(),
				"error", err,
			)
		}
	}
}
