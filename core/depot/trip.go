package depot

import (
	"fmt"
	"sort"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// Trip is one scheduled passenger trip between two depots.
type Trip struct {
	ID           string
	LineName     string
	Origin       *Depot
	Destination  *Depot
	VehicleTypes []*model.VehicleType

	// STD and STA are the scheduled departure and arrival in simulation
	// seconds. ETA is set at departure, ATD/ATA when they happen.
	STD int64
	STA int64
	ETA int64
	ATD int64
	ATA int64

	Distance float64

	// StartSoC/EndSoC/ChargeOnTrack feed the soc_given consumption mode.
	StartSoC      float64
	EndSoC        float64
	ChargeOnTrack bool

	Vehicle     *Vehicle
	VehicleFrom Area

	// ReservedForInit marks trips served directly from the init store.
	ReservedForInit bool

	// TMatch is when dispatch assigned a vehicle. GotEarlyVehicle flags
	// that running processes were cancelled for this trip.
	TMatch           int64
	GotEarlyVehicle  bool
	TGotEarlyVehicle int64

	// PeriodicTriggerScheduled guards the dispatch retrigger loop so it
	// runs at most once per trip.
	PeriodicTriggerScheduled bool

	// IsCopy marks trips cloned for timetable repetition.
	IsCopy bool

	departed bool
	arrived  bool
}

// NewTrip validates the basic trip data.
func NewTrip(id string, origin, destination *Depot, vts []*model.VehicleType, std, sta int64, distance float64) (*Trip, error) {
	if destination == nil {
		return nil, fmt.Errorf("trip %s: destination required", id)
	}
	if len(vts) == 0 {
		return nil, fmt.Errorf("trip %s: at least one vehicle type required", id)
	}
	if sta <= std {
		return nil, fmt.Errorf("trip %s: sta %d must be after std %d", id, sta, std)
	}
	if distance < 0 {
		return nil, fmt.Errorf("trip %s: negative distance", id)
	}
	return &Trip{
		ID: id, Origin: origin, Destination: destination,
		VehicleTypes: vts, STD: std, STA: sta, Distance: distance,
		ATD: -1, ATA: -1, ETA: -1, TMatch: -1,
	}, nil
}

// SetSoCProfile configures the soc_given consumption data.
func (t *Trip) SetSoCProfile(start, end float64, chargeOnTrack bool) error {
	if !chargeOnTrack && start < end {
		return fmt.Errorf("trip %s: start soc %.3f below end soc %.3f without charging on track", t.ID, start, end)
	}
	t.StartSoC, t.EndSoC, t.ChargeOnTrack = start, end, chargeOnTrack
	return nil
}

// Duration is the scheduled trip time.
func (t *Trip) Duration() int64 { return t.STA - t.STD }

// Departed reports whether the trip has left its origin.
func (t *Trip) Departed() bool { return t.departed }

// DelayedDeparture reports whether the trip left late or is overdue.
func (t *Trip) DelayedDeparture(now int64) bool {
	if t.departed {
		return t.ATD > t.STD
	}
	return now > t.STD
}

// DepartureDelay is the current departure delay in seconds, zero when on
// time.
func (t *Trip) DepartureDelay(now int64) int64 {
	ref := now
	if t.departed {
		ref = t.ATD
	}
	if d := ref - t.STD; d > 0 {
		return d
	}
	return 0
}

// ArrivalDelay is the arrival delay in seconds once arrived.
func (t *Trip) ArrivalDelay() int64 {
	if !t.arrived {
		return 0
	}
	if d := t.ATA - t.STA; d > 0 {
		return d
	}
	return 0
}

// AcceptsType reports whether vt can serve this trip.
func (t *Trip) AcceptsType(vt *model.VehicleType) bool {
	for _, cand := range t.VehicleTypes {
		if cand == vt {
			return true
		}
	}
	return false
}

// notifyDueDeparture triggers dispatch at time t if the trip is still
// unmatched by then.
func (t *Trip) notifyDueDeparture(env *sim.Engine, d *Depot, at int64) {
	delay := at - env.Now()
	if delay < 0 {
		delay = 0
	}
	env.After(delay, func() {
		if t.Vehicle == nil {
			d.Control.TriggerDispatch()
		}
	})
}

// Copy clones the trip shifted by the given offset for timetable
// repetition.
func (t *Trip) Copy(offset int64, suffix string) *Trip {
	c := &Trip{
		ID: t.ID + suffix, LineName: t.LineName,
		Origin: t.Origin, Destination: t.Destination,
		VehicleTypes: t.VehicleTypes,
		STD:          t.STD + offset, STA: t.STA + offset,
		Distance: t.Distance,
		StartSoC: t.StartSoC, EndSoC: t.EndSoC, ChargeOnTrack: t.ChargeOnTrack,
		ATD: -1, ATA: -1, ETA: -1, TMatch: -1,
		IsCopy: true,
	}
	return c
}

func sortTripsBySTD(trips []*Trip) {
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].STD < trips[j].STD })
}

func sortTripsByETA(trips []*Trip) {
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].ETA < trips[j].ETA })
}
