package events

// VehicleAction identifies what happened to a vehicle.
type VehicleAction string

const (
	VehicleArrived    VehicleAction = "arrived"
	VehicleDeparted   VehicleAction = "departed"
	VehicleDelayed    VehicleAction = "delayed"
	VehicleBatteryLow VehicleAction = "battery_low"
)

// VehicleEvent is published when a vehicle checks in, departs on a trip,
// misses its scheduled departure, or runs its battery below zero.
type VehicleEvent struct {
	Time      int64
	Action    VehicleAction
	VehicleID string
	TypeID    string
	TripID    string
	SoC       float64
	Delay     int64
}
