package metrics

import (
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/factory"
	coremetrics "github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
			RunID  string `json:"run_id"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket, c.RunID), nil
	})
}

// NewSinkSet builds the configured sinks, tagging every sink config with
// the run id before instantiation.
func NewSinkSet(cfg coremetrics.Config, runID string) (coremetrics.MetricsSink, error) {
	cfgs := make([]factory.ModuleConfig, len(cfg.Sinks))
	for i, c := range cfg.Sinks {
		conf := make(map[string]any, len(c.Conf)+1)
		for k, v := range c.Conf {
			conf[k] = v
		}
		conf["run_id"] = runID
		cfgs[i] = factory.ModuleConfig{Type: c.Type, Conf: conf}
	}
	return coremetrics.NewMetricsSink(cfgs)
}
