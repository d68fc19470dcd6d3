package depot

import "fmt"

// PlanEntry is one stop of a vehicle's route through the depot: a single
// area, a generic area group or a parking area group. Exactly one field
// is set.
type PlanEntry struct {
	Area         Area
	Group        *AreaGroup
	ParkingGroup *ParkingAreaGroup
}

// Validate checks that exactly one destination is set.
func (e PlanEntry) Validate() error {
	n := 0
	if e.Area != nil {
		n++
	}
	if e.Group != nil {
		n++
	}
	if e.ParkingGroup != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("plan entry: exactly one of area, group or parking group required")
	}
	return nil
}

// IsSink reports whether the entry only leads to departure areas.
func (e PlanEntry) IsSink() bool {
	switch {
	case e.Area != nil:
		return e.Area.IsSink()
	case e.ParkingGroup != nil:
		return true
	case e.Group != nil:
		for _, s := range e.Group.Stores {
			if !s.IsSink() {
				return false
			}
		}
		return true
	}
	return false
}

func (e PlanEntry) String() string {
	switch {
	case e.Area != nil:
		return e.Area.Name()
	case e.ParkingGroup != nil:
		return e.ParkingGroup.ID
	case e.Group != nil:
		return e.Group.ID
	}
	return "<empty>"
}

// ActivityPlan is an ordered route through the depot ending at a sink.
type ActivityPlan struct {
	Name    string
	Entries []PlanEntry
}

// Validate checks the entries and the sink requirement.
func (p *ActivityPlan) Validate() error {
	if len(p.Entries) == 0 {
		return fmt.Errorf("plan %s: no entries", p.Name)
	}
	for i, e := range p.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("plan %s entry %d: %w", p.Name, i, err)
		}
	}
	if !p.Entries[len(p.Entries)-1].IsSink() {
		return fmt.Errorf("plan %s: last entry %s is not a sink", p.Name, p.Entries[len(p.Entries)-1])
	}
	return nil
}

// SpecificPlan replaces the default plan for vehicles matching its
// filter.
type SpecificPlan struct {
	ActivityPlan
	Filter *VehicleFilter
}
