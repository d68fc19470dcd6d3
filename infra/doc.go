// Package infra holds the technical adapters around the simulation
// core: the zerolog logger, the prometheus and influx metric sinks and
// the MQTT event publisher. These packages depend only on the
// interfaces and event types defined under core.
package infra
