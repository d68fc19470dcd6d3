package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/config"
	coremetrics "github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/metrics"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/mqtt"
)

// stepSize is how far the engine advances between context checks.
const stepSize = 3600

// Service wires a scenario into a runnable simulation with its metric
// sinks and live event publisher.
type Service struct {
	RunID string
	World *World

	cfg  *config.Config
	sink coremetrics.MetricsSink
	mq   *mqtt.PahoClient
	log  logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.NewWithOptions("service", cfg.Logging.Level, cfg.Logging.Format)
	runID := uuid.NewString()

	world, err := BuildWorld(cfg, logger.NewWithOptions("depot", cfg.Logging.Level, cfg.Logging.Format))
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}

	sink, err := metrics.NewSinkSet(cfg.Metrics, runID)
	if err != nil {
		return nil, fmt.Errorf("metric sinks: %w", err)
	}
	metrics.ConnectEventCollector(world.Hub, sink, logg)

	svc := &Service{RunID: runID, World: world, cfg: cfg, sink: sink, log: logg}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mq = client
		pub := mqtt.NewEventPublisher(client, cfg.MQTT.TopicPrefix, runID, logg)
		pub.Attach(world.Hub)
	}
	return svc, nil
}

// Run stages the fleet, issues the timetable and advances the engine to
// the horizon. Cancelling the context stops the simulation at the next
// step boundary.
func (s *Service) Run(ctx context.Context) error {
	w := s.World
	s.log.Infof("run %s: %d depots, horizon %d s", s.RunID, len(w.Depots), w.Horizon)

	if s.cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	w.Generator.Run(w.Counts, w.Groups)
	w.Timetable.Run(w.Counts)

	for t := int64(0); t < w.Horizon; {
		if err := ctx.Err(); err != nil {
			s.log.Warnf("run %s cancelled at t=%d", s.RunID, w.Engine.Now())
			return err
		}
		t += stepSize
		if t > w.Horizon {
			t = w.Horizon
		}
		w.Engine.Run(t)
	}

	sum := s.Summarize()
	sum.Log(s.log)
	return nil
}

// Close releases the sinks and the broker connection.
func (s *Service) Close() error {
	var first error
	if c, ok := s.sink.(coremetrics.Closer); ok {
		if err := c.Close(); err != nil {
			first = err
		}
	}
	if s.mq != nil {
		if err := s.mq.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
