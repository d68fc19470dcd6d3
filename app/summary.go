package app

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// DepotSummary aggregates one depot's run.
type DepotSummary struct {
	ID          string
	Checkins    int
	Checkouts   int
	MaxVehicles int
	// PeakPowerKW is the highest total charging load observed.
	PeakPowerKW float64
	// QueuedParkings counts vehicles that had to wait for a parking
	// slot; the wait stats aggregate those waits in seconds.
	QueuedParkings   int
	MeanQueueWaitSec float64
	MaxQueueWaitSec  float64
}

// Summary aggregates a finished run: trip service quality and per-depot
// utilisation.
type Summary struct {
	RunID            string
	SimulatedSeconds int64

	TripsIssued   int
	TripsServed   int
	TripsDelayed  int
	TripsUnserved int
	// GotEarlyVehicles counts trips whose vehicle was only found by
	// cancelling a running process at departure time.
	GotEarlyVehicles int

	TotalDelaySeconds float64
	MeanDelaySeconds  float64
	MaxDelaySeconds   float64

	Depots []DepotSummary
}

// Summarize collects the run statistics from the live objects.
func (s *Service) Summarize() Summary {
	w := s.World
	sum := Summary{RunID: s.RunID, SimulatedSeconds: w.Engine.Now()}

	var delays []float64
	for _, t := range w.Timetable.TripsIssued {
		sum.TripsIssued++
		if !t.Departed() {
			sum.TripsUnserved++
			continue
		}
		sum.TripsServed++
		if t.GotEarlyVehicle {
			sum.GotEarlyVehicles++
		}
		if d := t.ATD - t.STD; d > 0 {
			sum.TripsDelayed++
			delays = append(delays, float64(d))
		}
	}
	for _, d := range delays {
		sum.TotalDelaySeconds += d
		if d > sum.MaxDelaySeconds {
			sum.MaxDelaySeconds = d
		}
	}
	if len(delays) > 0 {
		sum.MeanDelaySeconds = stat.Mean(delays, nil)
	}

	for _, d := range w.Depots {
		ds := DepotSummary{
			ID: d.ID, Checkins: d.Checkins, Checkouts: d.Checkouts,
			MaxVehicles: d.MaxCount,
		}
		for _, p := range d.PowerLog {
			if p.Total > ds.PeakPowerKW {
				ds.PeakPowerKW = p.Total
			}
		}
		if len(d.QueueWaits) > 0 {
			ds.QueuedParkings = len(d.QueueWaits)
			ds.MeanQueueWaitSec = stat.Mean(d.QueueWaits, nil)
			ds.MaxQueueWaitSec = floats.Max(d.QueueWaits)
		}
		sum.Depots = append(sum.Depots, ds)
	}
	return sum
}

// Log writes the summary through the structured logger.
func (sum Summary) Log(log logger.Logger) {
	log.Infow("run finished", map[string]any{
		"run_id":         sum.RunID,
		"simulated_s":    sum.SimulatedSeconds,
		"trips_issued":   sum.TripsIssued,
		"trips_served":   sum.TripsServed,
		"trips_delayed":  sum.TripsDelayed,
		"trips_unserved": sum.TripsUnserved,
		"got_early":      sum.GotEarlyVehicles,
		"total_delay_s":  sum.TotalDelaySeconds,
		"mean_delay_s":   sum.MeanDelaySeconds,
		"max_delay_s":    sum.MaxDelaySeconds,
	})
	for _, d := range sum.Depots {
		log.Infow("depot totals", map[string]any{
			"depot":             d.ID,
			"checkins":          d.Checkins,
			"checkouts":         d.Checkouts,
			"max_vehicles":      d.MaxVehicles,
			"peak_power_kw":     d.PeakPowerKW,
			"queued_parkings":   d.QueuedParkings,
			"mean_queue_wait_s": d.MeanQueueWaitSec,
			"max_queue_wait_s":  d.MaxQueueWaitSec,
		})
	}
}
