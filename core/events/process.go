package events

// ProcessAction identifies a process lifecycle transition.
type ProcessAction string

const (
	ProcessStarted   ProcessAction = "started"
	ProcessResumed   ProcessAction = "resumed"
	ProcessCompleted ProcessAction = "completed"
	ProcessCancelled ProcessAction = "cancelled"
	ChargeStarted    ProcessAction = "charge_start"
	ChargeEnded      ProcessAction = "charge_end"
)

// ProcessEvent is published for each lifecycle transition of a depot
// process working on a vehicle.
type ProcessEvent struct {
	Time      int64
	Action    ProcessAction
	Process   string
	Kind      string
	VehicleID string
	AreaID    string
	SoC       float64
}

// SlotEvent is published when a vehicle enters or leaves an area slot.
type SlotEvent struct {
	Time      int64
	AreaID    string
	Slot      int
	VehicleID string
	Entered   bool
}

// SwitchEvent is published when a resource switch opens or closes a
// break window on its resource.
type SwitchEvent struct {
	Time     int64
	SwitchID string
	Resource string
	// Strength is the switched capacity; Full reports a full shutdown.
	Strength int
	Full     bool
	Open     bool
}
