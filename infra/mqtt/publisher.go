package mqtt

import (
	"encoding/json"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/depot"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// Publisher is the transport the event publisher writes to.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// EventPublisher mirrors simulation events onto MQTT topics as JSON so
// external dashboards can follow a run live. Topics are <prefix>/vehicle,
// <prefix>/process, <prefix>/slot, <prefix>/switch, <prefix>/resource,
// <prefix>/power and <prefix>/congestion.
type EventPublisher struct {
	pub    Publisher
	prefix string
	runID  string
	log    logger.Logger
}

// NewEventPublisher wraps the transport. An empty prefix defaults to
// "eflips".
func NewEventPublisher(pub Publisher, prefix, runID string, log logger.Logger) *EventPublisher {
	if prefix == "" {
		prefix = "eflips"
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &EventPublisher{pub: pub, prefix: prefix, runID: runID, log: log}
}

// Attach subscribes the publisher to every stream of the event hub.
func (ep *EventPublisher) Attach(hub *depot.EventHub) {
	hub.Vehicle.Subscribe(func(ev events.VehicleEvent) {
		ep.publish(ep.prefix+"/vehicle", struct {
			RunID string `json:"run_id"`
			events.VehicleEvent
		}{ep.runID, ev})
	})
	hub.Process.Subscribe(func(ev events.ProcessEvent) {
		ep.publish(ep.prefix+"/process", struct {
			RunID string `json:"run_id"`
			events.ProcessEvent
		}{ep.runID, ev})
	})
	hub.Slot.Subscribe(func(ev events.SlotEvent) {
		ep.publish(ep.prefix+"/slot", struct {
			RunID string `json:"run_id"`
			events.SlotEvent
		}{ep.runID, ev})
	})
	hub.Switch.Subscribe(func(ev events.SwitchEvent) {
		ep.publish(ep.prefix+"/switch", struct {
			RunID string `json:"run_id"`
			events.SwitchEvent
		}{ep.runID, ev})
	})
	hub.Resource.Subscribe(func(ev events.ResourceEvent) {
		ep.publish(ep.prefix+"/resource", struct {
			RunID string `json:"run_id"`
			events.ResourceEvent
		}{ep.runID, ev})
	})
	hub.Power.Subscribe(func(ev events.PowerEvent) {
		ep.publish(ep.prefix+"/power", struct {
			RunID string `json:"run_id"`
			events.PowerEvent
		}{ep.runID, ev})
	})
	hub.Congestion.Subscribe(func(ev events.CongestionEvent) {
		ep.publish(ep.prefix+"/congestion", struct {
			RunID string `json:"run_id"`
			events.CongestionEvent
		}{ep.runID, ev})
	})
}

func (ep *EventPublisher) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		ep.log.Errorf("encode event for %s: %v", topic, err)
		return
	}
	if err := ep.pub.Publish(topic, payload); err != nil {
		ep.log.Errorf("publish to %s: %v", topic, err)
	}
}
