package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	coremetrics "github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// InfluxSink writes simulation events to an InfluxDB instance using the
// official client. Simulation timestamps are seconds from the scenario
// start and are written as seconds from the Unix epoch.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	runID    string
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint. Every point carries the run id as a tag so repeated runs
// stay distinguishable.
func NewInfluxSink(url, token, org, bucket, runID string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		runID:    runID,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket, runID string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket, runID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func simTime(t int64) time.Time { return time.Unix(t, 0).UTC() }

// RecordVehicleEvent writes the vehicle event as line protocol.
func (s *InfluxSink) RecordVehicleEvent(ev events.VehicleEvent) error {
	p := write.NewPointWithMeasurement("vehicle_event").
		AddTag("run_id", s.runID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("vehicle_type", ev.TypeID).
		AddTag("action", string(ev.Action)).
		AddField("soc", round3(ev.SoC)).
		AddField("delay_s", ev.Delay).
		SetTime(simTime(ev.Time))
	if ev.TripID != "" {
		p.AddTag("trip_id", ev.TripID)
	}
	return s.write(p)
}

// RecordProcessEvent writes a process lifecycle transition.
func (s *InfluxSink) RecordProcessEvent(ev events.ProcessEvent) error {
	p := write.NewPointWithMeasurement("process_event").
		AddTag("run_id", s.runID).
		AddTag("process", ev.Process).
		AddTag("kind", ev.Kind).
		AddTag("action", string(ev.Action)).
		AddTag("vehicle_id", ev.VehicleID).
		AddField("soc", round3(ev.SoC)).
		SetTime(simTime(ev.Time))
	if ev.AreaID != "" {
		p.AddTag("area", ev.AreaID)
	}
	return s.write(p)
}

// RecordSlotEvent writes a slot occupation change.
func (s *InfluxSink) RecordSlotEvent(ev events.SlotEvent) error {
	p := write.NewPointWithMeasurement("slot_event").
		AddTag("run_id", s.runID).
		AddTag("area", ev.AreaID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("entered", strconv.FormatBool(ev.Entered)).
		AddField("slot", ev.Slot).
		SetTime(simTime(ev.Time))
	return s.write(p)
}

// RecordSwitchEvent writes a break window transition.
func (s *InfluxSink) RecordSwitchEvent(ev events.SwitchEvent) error {
	p := write.NewPointWithMeasurement("switch_event").
		AddTag("run_id", s.runID).
		AddTag("switch_id", ev.SwitchID).
		AddTag("resource", ev.Resource).
		AddTag("open", strconv.FormatBool(ev.Open)).
		AddField("strength", ev.Strength).
		AddField("full", ev.Full).
		SetTime(simTime(ev.Time))
	return s.write(p)
}

// RecordResourceEvent writes a resource occupancy sample.
func (s *InfluxSink) RecordResourceEvent(ev events.ResourceEvent) error {
	p := write.NewPointWithMeasurement("resource_event").
		AddTag("run_id", s.runID).
		AddTag("resource", ev.Resource).
		AddField("users", ev.Users).
		AddField("queue", ev.Queue).
		AddField("capacity", ev.Capacity).
		SetTime(simTime(ev.Time))
	return s.write(p)
}

// RecordPowerEvent writes a change of the depot's total charging load.
func (s *InfluxSink) RecordPowerEvent(ev events.PowerEvent) error {
	p := write.NewPointWithMeasurement("power_event").
		AddTag("run_id", s.runID).
		AddTag("depot", ev.DepotID).
		AddField("delta_kw", round3(ev.DeltaKW)).
		AddField("total_kw", round3(ev.TotalKW)).
		SetTime(simTime(ev.Time))
	return s.write(p)
}

// RecordCongestionEvent writes a resolved parking slot wait.
func (s *InfluxSink) RecordCongestionEvent(ev events.CongestionEvent) error {
	p := write.NewPointWithMeasurement("congestion_event").
		AddTag("run_id", s.runID).
		AddTag("area", ev.AreaID).
		AddTag("vehicle_id", ev.VehicleID).
		AddField("wait_s", ev.Wait).
		SetTime(simTime(ev.Time))
	return s.write(p)
}

// Close shuts the underlying client down.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
