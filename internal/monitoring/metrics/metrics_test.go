// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	defer m.Close()
}

func TestNewMetricsWithConfig(t *testing.T) {
	config := DefaultMetricsConfig()
	config.BufferSize = 500
	config.EnterLatencyBuffer = 50

	m := NewMetricsWithConfig(config)
	if m == nil {
		t.Fatal("NewMetricsWithConfig() returned nil")
	}
	defer m.Close()
}

func TestRecordTick(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordTick()
	m.RecordTick()
	time.Sleep(10 * time.Millisecond)

	if got := m.GetStats().Ticks; got != 2 {
		t.Errorf("Ticks = %d, want 2", got)
	}
}

func TestRecordEnter(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	duration := 5 * time.Microsecond
	m.RecordEnter(duration)
	m.RecordEnterRetry()
	time.Sleep(10 * time.Millisecond)

	stats := m.GetStats()
	if stats.Enters != 1 {
		t.Errorf("Enters = %d, want 1", stats.Enters)
	}
	if stats.EnterRetries != 1 {
		t.Errorf("EnterRetries = %d, want 1", stats.EnterRetries)
	}
	if got := stats.EnterLatency.Mean; got != duration {
		t.Errorf("EnterLatency.Mean = %s, want %s", got, duration)
	}
}

func TestRecordExit(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordExit()
	time.Sleep(10 * time.Millisecond)

	if got := m.GetStats().Exits; got != 1 {
		t.Errorf("Exits = %d, want 1", got)
	}
}

func TestRecordReadOnlyPath(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordReadOnlyEnter()
	m.RecordReadOnlyExit()
	time.Sleep(10 * time.Millisecond)

	stats := m.GetStats()
	if stats.ReadOnlyEnters != 1 {
		t.Errorf("ReadOnlyEnters = %d, want 1", stats.ReadOnlyEnters)
	}
	if stats.ReadOnlyExits != 1 {
		t.Errorf("ReadOnlyExits = %d, want 1", stats.ReadOnlyExits)
	}
}

func TestRecordRegistrationChurn(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordRegister()
	m.RecordRegister()
	m.RecordDeregister()
	time.Sleep(10 * time.Millisecond)

	stats := m.GetStats()
	if stats.Registrations != 2 {
		t.Errorf("Registrations = %d, want 2", stats.Registrations)
	}
	if stats.Deregistrations != 1 {
		t.Errorf("Deregistrations = %d, want 1", stats.Deregistrations)
	}
}

func TestRecordResetRejected(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordResetRejected()
	time.Sleep(10 * time.Millisecond)

	if got := m.GetStats().ResetRejections; got != 1 {
		t.Errorf("ResetRejections = %d, want 1", got)
	}
}

func TestRecordGlobalTailEpoch(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	duration := 2 * time.Microsecond
	m.RecordGlobalTailEpoch(41, duration)
	time.Sleep(10 * time.Millisecond)

	stats := m.GetStats()
	if stats.LastGlobalTailEpoch != 41 {
		t.Errorf("LastGlobalTailEpoch = %d, want 41", stats.LastGlobalTailEpoch)
	}
	if got := stats.ReducerLatency.Mean; got != duration {
		t.Errorf("ReducerLatency.Mean = %s, want %s", got, duration)
	}
}

func TestExportPrometheusContainsCoreMetrics(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordTick()
	m.RecordEnter(time.Microsecond)
	m.RecordGlobalTailEpoch(7, time.Microsecond)
	time.Sleep(10 * time.Millisecond)

	out := m.ExportPrometheus()
	for _, want := range []string{"dem_driver_ticks_total", "dem_enters_total", "dem_global_tail_epoch"} {
		if !strings.Contains(out, want) {
			t.Errorf("ExportPrometheus() missing %q", want)
		}
	}
}

func TestExportJSONRoundTrips(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	m.RecordTick()
	time.Sleep(10 * time.Millisecond)

	data := m.ExportJSON()
	if len(data) == 0 {
		t.Fatal("ExportJSON() returned empty payload")
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := NewMetrics()
	defer m.Close()

	var wg sync.WaitGroup
	const goroutines = 8
	const perGoroutine = 200

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.RecordEnter(time.Microsecond)
				m.RecordExit()
			}
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	stats := m.GetStats()
	if stats.Enters == 0 || stats.Exits == 0 {
		t.Fatalf("expected non-zero counts after concurrent recording, got enters=%d exits=%d", stats.Enters, stats.Exits)
	}
}
