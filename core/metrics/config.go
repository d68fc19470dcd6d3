package metrics

import "github.com/mpm-tu-berlin/eflips-depot-sub000/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort serves /metrics when a prometheus sink is
	// configured; empty disables the HTTP endpoint.
	PrometheusPort string `json:"prometheus_port"`
}
