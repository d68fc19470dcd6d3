// Package metrics defines the sink interfaces used to record simulation
// events. Sinks like the Prometheus and InfluxDB implementations in
// infra/metrics subscribe to the depot event hub and can be combined with
// NewMultiSink. NewMetricsSink builds the configured sink set through the
// factory registry, returning a MultiSink automatically when more than
// one sink is configured.
package metrics
