// Package events defines the depot related events emitted on the event bus.
//
// Available event types:
//   - VehicleEvent: arrival, departure and battery warnings per vehicle
//   - ProcessEvent: lifecycle transitions of depot processes
//   - SlotEvent: vehicles entering and leaving area slots
//   - SwitchEvent: resource switch window transitions
//   - ResourceEvent: occupancy samples of shared resources
//   - PowerEvent: changes of a depot's total charging load
//   - CongestionEvent: resolved waits for parking slots
package events
