package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	id := DeviceID{ID: "1234567890AB", Type: "instar-camera"}
	d := NewDevice(id, "instar-camera-1234567890AB", map[string]string{"root_topic": "instar"})

	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.ID != id || rec.DisplayName != "instar-camera-1234567890AB" {
		t.Errorf("record = %+v", rec)
	}
	if rec.CustomIdentifiers["root_topic"] != "instar" {
		t.Errorf("CustomIdentifiers = %v", rec.CustomIdentifiers)
	}
	if !rec.CreatedAt.Equal(d.CreatedAt()) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, d.CreatedAt())
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
}

func TestSQLiteRepository_SaveUpserts(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	id := DeviceID{ID: "X", Type: testType}
	d := NewDevice(id, "first", nil)
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	d.SetDisplayName("second")
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].DisplayName != "second" {
		t.Errorf("records = %+v", records)
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), DeviceID{ID: "missing", Type: testType})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_SameIDDifferentTypes(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, typ := range []Type{"b-type", "a-type"} {
		if err := repo.Save(ctx, NewDevice(DeviceID{ID: "SAME", Type: typ}, string(typ), nil)); err != nil {
			t.Fatalf("Save(%s) error = %v", typ, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 || records[0].ID.Type != "a-type" || records[1].ID.Type != "b-type" {
		t.Errorf("List() = %+v, want both types ordered", records)
	}
}

func TestSQLiteRepository_WithRegistry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pub := &MockPublisher{}
	id := DeviceID{ID: "1234567890AB", Type: testType}

	first := NewRegistry(NewSQLiteRepository(db), testTypes(t, pub), pub)
	if _, err := first.Resolve(ctx, id); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// A new process sees the stored device and does not announce it again.
	restartPub := &MockPublisher{}
	second := NewRegistry(NewSQLiteRepository(db), testTypes(t, restartPub), restartPub)
	if err := second.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	d, err := second.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.DisplayName() != "test-camera-1234567890AB" {
		t.Errorf("DisplayName() = %q", d.DisplayName())
	}
	if restartPub.count(EventTypeDeviceCreated) != 0 {
		t.Error("restart published device created")
	}
}

func TestParseTimestamp(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 5, time.UTC)

	got, err := parseTimestamp(formatTimestamp(ts))
	if err != nil || !got.Equal(ts) {
		t.Errorf("round trip = %v, %v", got, err)
	}

	if _, err := parseTimestamp("2026-10-19T12:00:00Z"); err != nil {
		t.Errorf("RFC3339 fallback error = %v", err)
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("parseTimestamp(garbage) expected error")
	}
}
