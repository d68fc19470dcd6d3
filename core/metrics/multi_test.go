package metrics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/factory"
)

type recordingSink struct {
	vehicles  []events.VehicleEvent
	processes []events.ProcessEvent
	fail      bool
}

func (s *recordingSink) RecordVehicleEvent(ev events.VehicleEvent) error {
	if s.fail {
		return fmt.Errorf("sink down")
	}
	s.vehicles = append(s.vehicles, ev)
	return nil
}

func (s *recordingSink) RecordProcessEvent(ev events.ProcessEvent) error {
	s.processes = append(s.processes, ev)
	return nil
}

// vehicleOnlySink does not implement the optional recorder interfaces.
type vehicleOnlySink struct{ vehicles int }

func (s *vehicleOnlySink) RecordVehicleEvent(events.VehicleEvent) error {
	s.vehicles++
	return nil
}

func TestMultiSinkFanout(t *testing.T) {
	a := &recordingSink{}
	b := &vehicleOnlySink{}
	m := NewMultiSink(a, b)

	require.NoError(t, m.RecordVehicleEvent(events.VehicleEvent{VehicleID: "bus1"}))
	require.NoError(t, m.RecordProcessEvent(events.ProcessEvent{Process: "charge"}))

	assert.Len(t, a.vehicles, 1)
	assert.Len(t, a.processes, 1)
	// The vehicle-only sink receives vehicle events and silently skips
	// process events.
	assert.Equal(t, 1, b.vehicles)
}

func TestMultiSinkFirstError(t *testing.T) {
	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	m := NewMultiSink(bad, good)

	err := m.RecordVehicleEvent(events.VehicleEvent{VehicleID: "bus1"})
	assert.ErrorContains(t, err, "sink down")
	assert.Empty(t, good.vehicles)
}

func TestNewMetricsSink(t *testing.T) {
	require.NoError(t, RegisterMetricsSink("recording_test", func(map[string]any) (MetricsSink, error) {
		return &recordingSink{}, nil
	}))

	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "recording_test"}})
	require.NoError(t, err)
	assert.IsType(t, &recordingSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "recording_test"}, {Type: "recording_test"}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.ErrorContains(t, err, "unknown module type")
}
