package device

import (
	"sync"
	"testing"
	"time"
)

func TestMotionSensor_EmptyBeforeFirstUpdate(t *testing.T) {
	m := NewMotionSensor(DeviceID{ID: "X", Type: testType}, nil)

	if _, ok := m.LastMotionDetected(); ok {
		t.Error("LastMotionDetected() reported a value before any update")
	}
	if _, ok := m.State(); ok {
		t.Error("State() reported a value before any update")
	}
}

func TestMotionSensor_SetMotionDetected(t *testing.T) {
	pub := &MockPublisher{}
	id := DeviceID{ID: "1234567890AB", Type: "instar-camera"}
	m := NewMotionSensor(id, pub)

	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	m.SetMotionDetected(ts, true)

	got, ok := m.LastMotionDetected()
	if !ok || !got.Equal(ts) {
		t.Errorf("LastMotionDetected() = %v, %v; want %v, true", got, ok, ts)
	}
	state, _ := m.State()
	if !state.Detected {
		t.Error("State().Detected = false, want true")
	}

	evt, ok := pub.last().(MotionDetectedEvent)
	if !ok {
		t.Fatalf("published %T, want MotionDetectedEvent", pub.last())
	}
	want := PropertyID{Device: id, Key: "motion"}
	if evt.Property != want || !evt.Value || !evt.Timestamp.Equal(ts) || evt.ID == "" {
		t.Errorf("event = %+v", evt)
	}
	if m.PropertyID() != want {
		t.Errorf("PropertyID() = %+v, want %+v", m.PropertyID(), want)
	}
}

func TestMotionSensor_NoDeduplication(t *testing.T) {
	pub := &MockPublisher{}
	m := NewMotionSensor(DeviceID{ID: "X", Type: testType}, pub)

	ts := time.Now()
	m.SetMotionDetected(ts, true)
	m.SetMotionDetected(ts, true)
	m.SetMotionDetected(ts.Add(time.Second), false)

	if n := pub.count(EventTypeMotionDetected); n != 3 {
		t.Errorf("motion events = %d, want 3", n)
	}
	state, _ := m.State()
	if state.Detected {
		t.Error("State().Detected = true after false update")
	}
}

func TestMotionSensor_NoMonotonicityCheck(t *testing.T) {
	m := NewMotionSensor(DeviceID{ID: "X", Type: testType}, nil)

	later := time.Now()
	earlier := later.Add(-time.Minute)
	m.SetMotionDetected(later, true)
	m.SetMotionDetected(earlier, false)

	got, _ := m.LastMotionDetected()
	if !got.Equal(earlier) {
		t.Errorf("LastMotionDetected() = %v, want the last applied %v", got, earlier)
	}
}

// Readers must always see a timestamp/value pair written together.
func TestMotionSensor_ConcurrentReadsDoNotTear(t *testing.T) {
	m := NewMotionSensor(DeviceID{ID: "X", Type: testType}, nil)

	base := time.Unix(1_700_000_000, 0)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			// Odd seconds carry true, even seconds false.
			m.SetMotionDetected(base.Add(time.Duration(i)*time.Second), i%2 == 1)
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				state, ok := m.State()
				if !ok {
					continue
				}
				odd := state.LastMotionDetected.Sub(base)/time.Second%2 == 1
				if odd != state.Detected {
					t.Errorf("torn read: %+v", state)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestMotionDetectedEvent_State(t *testing.T) {
	id := DeviceID{ID: "1234567890AB", Type: "instar-camera"}
	ts := time.Now()
	evt := NewMotionDetectedEvent(PropertyID{Device: id, Key: PropertyKeyMotion}, true, ts)

	if evt.StateKey() != "instar-camera-1234567890AB" {
		t.Errorf("StateKey() = %q", evt.StateKey())
	}
	state, ok := evt.StatePayload().(map[string]MotionState)
	if !ok || !state["motion"].Detected || !state["motion"].LastMotionDetected.Equal(ts) {
		t.Errorf("StatePayload() = %#v", evt.StatePayload())
	}
	if evt.EventType() != EventTypeMotionDetected || !evt.OccurredAt().Equal(ts) {
		t.Error("event metadata mismatch")
	}
}
