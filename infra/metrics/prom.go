package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
)

// PromSink records simulation events in Prometheus metrics.
type PromSink struct {
	vehicleEvents *prometheus.CounterVec
	processEvents *prometheus.CounterVec
	delay         *prometheus.HistogramVec
	occupancy     *prometheus.GaugeVec
	switches      *prometheus.CounterVec
	resourceUsers *prometheus.GaugeVec
	power         *prometheus.GaugeVec
	queueWait     *prometheus.HistogramVec
}

// NewPromSink registers the depot metrics on the default Prometheus
// registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	vehicleEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_vehicle_events_total",
		Help: "Total number of vehicle events by action",
	}, []string{"action", "vehicle_type"})
	processEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_process_events_total",
		Help: "Total number of depot process transitions",
	}, []string{"kind", "action"})
	delay := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depot_departure_delay_seconds",
		Help:    "Departure delay of trips leaving the depot",
		Buckets: []float64{0, 60, 300, 600, 1800, 3600, 7200},
	}, []string{"vehicle_type"})
	occupancy := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "depot_area_occupancy",
		Help: "Number of vehicles parked per area",
	}, []string{"area"})
	switches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_switch_transitions_total",
		Help: "Resource switch window openings and closings",
	}, []string{"resource", "open"})
	resourceUsers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "depot_resource_users",
		Help: "Current number of claims holding a shared resource",
	}, []string{"resource"})
	power := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "depot_total_power_kw",
		Help: "Momentary total charging load per depot",
	}, []string{"depot"})
	queueWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depot_parking_queue_wait_seconds",
		Help:    "Time vehicles queued for a parking slot",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200},
	}, []string{"area"})

	sink := &PromSink{
		vehicleEvents: vehicleEvents,
		processEvents: processEvents,
		delay:         delay,
		occupancy:     occupancy,
		switches:      switches,
		resourceUsers: resourceUsers,
		power:         power,
		queueWait:     queueWait,
	}
	for _, c := range []prometheus.Collector{vehicleEvents, processEvents, delay, occupancy, switches, resourceUsers, power, queueWait} {
		if err := registerOrReuse(reg, c, sink); err != nil {
			return nil, err
		}
	}
	return sink, nil
}

func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector, sink *PromSink) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return err
	}
	switch existing := are.ExistingCollector.(type) {
	case *prometheus.CounterVec:
		switch c {
		case sink.vehicleEvents:
			sink.vehicleEvents = existing
		case sink.processEvents:
			sink.processEvents = existing
		case sink.switches:
			sink.switches = existing
		}
	case *prometheus.HistogramVec:
		switch c {
		case sink.delay:
			sink.delay = existing
		case sink.queueWait:
			sink.queueWait = existing
		}
	case *prometheus.GaugeVec:
		switch c {
		case sink.occupancy:
			sink.occupancy = existing
		case sink.resourceUsers:
			sink.resourceUsers = existing
		case sink.power:
			sink.power = existing
		}
	}
	return nil
}

// RecordVehicleEvent counts the event and observes departure delays.
func (s *PromSink) RecordVehicleEvent(ev events.VehicleEvent) error {
	s.vehicleEvents.WithLabelValues(string(ev.Action), ev.TypeID).Inc()
	if ev.Action == events.VehicleDeparted {
		s.delay.WithLabelValues(ev.TypeID).Observe(float64(ev.Delay))
	}
	return nil
}

// RecordProcessEvent counts the process transition.
func (s *PromSink) RecordProcessEvent(ev events.ProcessEvent) error {
	s.processEvents.WithLabelValues(ev.Kind, string(ev.Action)).Inc()
	return nil
}

// RecordSlotEvent tracks per-area occupancy.
func (s *PromSink) RecordSlotEvent(ev events.SlotEvent) error {
	g := s.occupancy.WithLabelValues(ev.AreaID)
	if ev.Entered {
		g.Inc()
	} else {
		g.Dec()
	}
	return nil
}

// RecordSwitchEvent counts break window transitions.
func (s *PromSink) RecordSwitchEvent(ev events.SwitchEvent) error {
	open := "false"
	if ev.Open {
		open = "true"
	}
	s.switches.WithLabelValues(ev.Resource, open).Inc()
	return nil
}

// RecordResourceEvent tracks how many claims hold each resource.
func (s *PromSink) RecordResourceEvent(ev events.ResourceEvent) error {
	s.resourceUsers.WithLabelValues(ev.Resource).Set(float64(ev.Users))
	return nil
}

// RecordPowerEvent tracks the depot's momentary charging load.
func (s *PromSink) RecordPowerEvent(ev events.PowerEvent) error {
	s.power.WithLabelValues(ev.DepotID).Set(ev.TotalKW)
	return nil
}

// RecordCongestionEvent observes how long a vehicle queued for a slot.
func (s *PromSink) RecordCongestionEvent(ev events.CongestionEvent) error {
	s.queueWait.WithLabelValues(ev.AreaID).Observe(float64(ev.Wait))
	return nil
}

var _ coremetrics.MetricsSink = (*PromSink)(nil)
