package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/config"
)

// fakeWriter collects points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return newClient(nil, w, config.InfluxDBConfig{Enabled: true}), w
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestWriteMotion_Point(t *testing.T) {
	client, w := newTestClient()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	client.WriteMotion("instar-camera", "1234567890AB", "motion", true, at)
	client.WriteMotion("instar-camera", "1234567890AB", "motion", false, at.Add(time.Second))

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}

	p := w.points[0]
	if p.Name() != MeasurementMotion {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementMotion)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	gotTags := tags(p)
	if gotTags["device_type"] != "instar-camera" || gotTags["device_id"] != "1234567890AB" || gotTags["property"] != "motion" {
		t.Errorf("tags = %v", gotTags)
	}

	// The client converts ints to int64 and keeps bools.
	if f := fields(p); f["detected"] != true || f["count"] != int64(1) {
		t.Errorf("fields = %v", f)
	}
	if f := fields(w.points[1]); f["detected"] != false || f["count"] != int64(0) {
		t.Errorf("second fields = %v", f)
	}
}

func TestWriteDeviceEvent_Point(t *testing.T) {
	client, w := newTestClient()

	client.WriteDeviceEvent("instar-camera", "1234567890AB", "device_created", time.Now())

	if len(w.points) != 1 || w.points[0].Name() != MeasurementDeviceEvents {
		t.Fatalf("points = %v", w.points)
	}
	if got := tags(w.points[0])["event"]; got != "device_created" {
		t.Errorf("event tag = %q", got)
	}
}

func TestWrite_AfterCloseIsDropped(t *testing.T) {
	client, w := newTestClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes on Close = %d, want 1", w.flushes)
	}

	client.WriteMotion("instar-camera", "X", "motion", true, time.Now())
	client.WritePointWithTime("custom", nil, map[string]any{"v": 1}, time.Now())
	client.Flush()

	if len(w.points) != 0 {
		t.Errorf("points after Close = %d, want 0", len(w.points))
	}
	if w.flushes != 1 {
		t.Errorf("Flush after Close reached the writer")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	client, _ := newTestClient()

	var got []error
	client.SetOnError(func(err error) { got = append(got, err) })

	ch := make(chan error, 2)
	ch <- errors.New("bucket not found")
	ch <- errors.New("unauthorized")
	close(ch)

	client.handleWriteErrors(ch)

	if len(got) != 2 {
		t.Fatalf("callbacks = %d, want 2", len(got))
	}
	if !errors.Is(got[0], ErrWriteFailed) {
		t.Errorf("error = %v, want ErrWriteFailed", got[0])
	}
}
