package metrics

import (
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/depot"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	coremetrics "github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// ConnectEventCollector subscribes the sink to every stream of the event
// hub. Events are recorded synchronously as the simulation publishes
// them; sink errors are logged and do not stop the run.
func ConnectEventCollector(hub *depot.EventHub, sink coremetrics.MetricsSink, log logger.Logger) {
	if hub == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	hub.Vehicle.Subscribe(func(ev events.VehicleEvent) {
		if err := sink.RecordVehicleEvent(ev); err != nil {
			log.Errorf("record vehicle event: %v", err)
		}
	})
	hub.Process.Subscribe(func(ev events.ProcessEvent) {
		rec, ok := sink.(coremetrics.ProcessRecorder)
		if !ok {
			return
		}
		if err := rec.RecordProcessEvent(ev); err != nil {
			log.Errorf("record process event: %v", err)
		}
	})
	hub.Slot.Subscribe(func(ev events.SlotEvent) {
		rec, ok := sink.(coremetrics.SlotRecorder)
		if !ok {
			return
		}
		if err := rec.RecordSlotEvent(ev); err != nil {
			log.Errorf("record slot event: %v", err)
		}
	})
	hub.Switch.Subscribe(func(ev events.SwitchEvent) {
		rec, ok := sink.(coremetrics.SwitchRecorder)
		if !ok {
			return
		}
		if err := rec.RecordSwitchEvent(ev); err != nil {
			log.Errorf("record switch event: %v", err)
		}
	})
	hub.Resource.Subscribe(func(ev events.ResourceEvent) {
		rec, ok := sink.(coremetrics.ResourceRecorder)
		if !ok {
			return
		}
		if err := rec.RecordResourceEvent(ev); err != nil {
			log.Errorf("record resource event: %v", err)
		}
	})
	hub.Power.Subscribe(func(ev events.PowerEvent) {
		rec, ok := sink.(coremetrics.PowerRecorder)
		if !ok {
			return
		}
		if err := rec.RecordPowerEvent(ev); err != nil {
			log.Errorf("record power event: %v", err)
		}
	})
	hub.Congestion.Subscribe(func(ev events.CongestionEvent) {
		rec, ok := sink.(coremetrics.CongestionRecorder)
		if !ok {
			return
		}
		if err := rec.RecordCongestionEvent(ev); err != nil {
			log.Errorf("record congestion event: %v", err)
		}
	})
}
