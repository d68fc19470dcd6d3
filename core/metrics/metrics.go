package metrics

import "github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"

// MetricsSink records simulation events for observability purposes. Every
// sink handles vehicle events; the optional recorder interfaces below
// cover the finer-grained streams.
type MetricsSink interface {
	RecordVehicleEvent(ev events.VehicleEvent) error
}

// ProcessRecorder records depot process lifecycle transitions.
type ProcessRecorder interface {
	RecordProcessEvent(ev events.ProcessEvent) error
}

// SlotRecorder records vehicles entering and leaving area slots.
type SlotRecorder interface {
	RecordSlotEvent(ev events.SlotEvent) error
}

// SwitchRecorder records resource switch window transitions.
type SwitchRecorder interface {
	RecordSwitchEvent(ev events.SwitchEvent) error
}

// ResourceRecorder records occupancy samples of shared resources.
type ResourceRecorder interface {
	RecordResourceEvent(ev events.ResourceEvent) error
}

// PowerRecorder records changes of a depot's total charging load.
type PowerRecorder interface {
	RecordPowerEvent(ev events.PowerEvent) error
}

// CongestionRecorder records resolved waits for parking slots.
type CongestionRecorder interface {
	RecordCongestionEvent(ev events.CongestionEvent) error
}

// Closer is implemented by sinks holding external connections.
type Closer interface {
	Close() error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordVehicleEvent(events.VehicleEvent) error { return nil }
func (NopSink) RecordProcessEvent(events.ProcessEvent) error { return nil }
func (NopSink) RecordSlotEvent(events.SlotEvent) error       { return nil }
func (NopSink) RecordSwitchEvent(events.SwitchEvent) error   { return nil }

func (NopSink) RecordResourceEvent(events.ResourceEvent) error     { return nil }
func (NopSink) RecordPowerEvent(events.PowerEvent) error           { return nil }
func (NopSink) RecordCongestionEvent(events.CongestionEvent) error { return nil }

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordVehicleEvent forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordVehicleEvent(ev events.VehicleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordVehicleEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordProcessEvent forwards process events to sinks that record them.
func (m *MultiSink) RecordProcessEvent(ev events.ProcessEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ProcessRecorder); ok {
			if err := rec.RecordProcessEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSlotEvent forwards slot events to sinks that record them.
func (m *MultiSink) RecordSlotEvent(ev events.SlotEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SlotRecorder); ok {
			if err := rec.RecordSlotEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSwitchEvent forwards switch events to sinks that record them.
func (m *MultiSink) RecordSwitchEvent(ev events.SwitchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SwitchRecorder); ok {
			if err := rec.RecordSwitchEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordResourceEvent forwards resource events to sinks that record
// them.
func (m *MultiSink) RecordResourceEvent(ev events.ResourceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ResourceRecorder); ok {
			if err := rec.RecordResourceEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPowerEvent forwards power events to sinks that record them.
func (m *MultiSink) RecordPowerEvent(ev events.PowerEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PowerRecorder); ok {
			if err := rec.RecordPowerEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCongestionEvent forwards congestion events to sinks that record
// them.
func (m *MultiSink) RecordCongestionEvent(ev events.CongestionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CongestionRecorder); ok {
			if err := rec.RecordCongestionEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink holding external connections.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
