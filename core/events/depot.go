package events

// ResourceEvent samples a shared resource's occupancy whenever a claim
// is filed, granted, released or withdrawn.
type ResourceEvent struct {
	Time     int64
	Resource string
	Users    int
	Queue    int
	Capacity int
}

// PowerEvent is published whenever a depot's total charging load
// changes.
type PowerEvent struct {
	Time    int64
	DepotID string
	// DeltaKW is the load change, TotalKW the resulting total draw.
	DeltaKW float64
	TotalKW float64
}

// CongestionEvent is published when a vehicle that had to queue for a
// parking slot finally obtains one.
type CongestionEvent struct {
	Time      int64
	AreaID    string
	VehicleID string
	// Wait is the queueing time in seconds.
	Wait int64
}
