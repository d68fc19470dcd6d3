package mqtt

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/depot"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	fail     bool
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.fail {
		return fmt.Errorf("broker gone")
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestEventPublisherTopicsAndPayload(t *testing.T) {
	hub := depot.NewEventHub()
	pub := &fakePublisher{}
	NewEventPublisher(pub, "eflips/depot1", "run-42", logger.NopLogger{}).Attach(hub)

	hub.Vehicle.Publish(events.VehicleEvent{
		Time: 1800, Action: events.VehicleDeparted, VehicleID: "bus1", TypeID: "EN", Delay: 60,
	})
	hub.Process.Publish(events.ProcessEvent{
		Time: 1200, Action: events.ChargeEnded, Process: "charge", VehicleID: "bus1",
	})
	hub.Power.Publish(events.PowerEvent{Time: 0, DepotID: "depot1", DeltaKW: 30, TotalKW: 30})
	hub.Congestion.Publish(events.CongestionEvent{Time: 600, AreaID: "lane", VehicleID: "bus2", Wait: 600})

	require.Equal(t, []string{
		"eflips/depot1/vehicle", "eflips/depot1/process",
		"eflips/depot1/power", "eflips/depot1/congestion",
	}, pub.topics)

	var vehicle map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &vehicle))
	assert.Equal(t, "run-42", vehicle["run_id"])
	assert.Equal(t, "departed", vehicle["Action"])
	assert.Equal(t, "bus1", vehicle["VehicleID"])
	assert.InDelta(t, 1800, vehicle["Time"].(float64), 1e-9)
}

func TestEventPublisherDefaultPrefix(t *testing.T) {
	hub := depot.NewEventHub()
	pub := &fakePublisher{}
	NewEventPublisher(pub, "", "run-1", nil).Attach(hub)

	hub.Slot.Publish(events.SlotEvent{AreaID: "lane", Slot: 2, Entered: true})

	require.Len(t, pub.topics, 1)
	assert.Equal(t, "eflips/slot", pub.topics[0])
}

func TestEventPublisherSurvivesPublishErrors(t *testing.T) {
	hub := depot.NewEventHub()
	pub := &fakePublisher{fail: true}
	NewEventPublisher(pub, "eflips", "run-1", logger.NopLogger{}).Attach(hub)

	// Errors are logged, not propagated to the simulation.
	hub.Switch.Publish(events.SwitchEvent{SwitchID: "night", Open: true})
	assert.Empty(t, pub.topics)
}
