package device

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-instar/internal/event"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-instar/migrations"
)

const testType Type = "test-camera"

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *MockPublisher) Publish(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *MockPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func (p *MockPublisher) last() event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// testTypes returns a catalog with a motion-capable test type.
func testTypes(t *testing.T, publisher event.Publisher) *TypeRegistry {
	t.Helper()
	types := NewTypeRegistry()
	err := types.Register(testType, func(id DeviceID, name string, ids map[string]string) *Device {
		d := NewDevice(id, name, ids)
		d.AddCapability(NewMotionSensor(id, publisher))
		return d
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return types
}
