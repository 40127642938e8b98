package metrics

// Emitter is the boundary the monitor emits through; production wires the
// Prometheus implementation, tests substitute a recorder.
type Emitter interface {
	Emit(name string, value float64, dimensions map[string]string)
}

// PrometheusEmitter maps known metric names onto the registered collectors.
type PrometheusEmitter struct{}

func (PrometheusEmitter) Emit(name string, value float64, dimensions map[string]string) {
	switch name {
	case "stuck_campaigns":
		StuckCampaigns.WithLabelValues(dimensions["reason"]).Add(value)
	}
}
