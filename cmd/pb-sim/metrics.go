package main

import (
	"net/http"

	"github.com/pixelblaze-tools/pb-go/internal/devicesim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics exposes simulator traffic and state to Prometheus.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pbsim_requests_total",
			Help: "Requests received, by message key",
		}, []string{"key"}),
	}
	m.registry.MustRegister(m.requests)
	return m
}

// observe counts one request. It is installed as devicesim.Config.OnMessage.
func (m *metrics) observe(key string) {
	m.requests.WithLabelValues(key).Inc()
}

// watch registers gauges that read the simulator state on scrape.
func (m *metrics) watch(sim *devicesim.Sim) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbsim_brightness",
			Help: "Current brightness (0-1)",
		}, func() float64 { return sim.State().Brightness }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbsim_pixel_count",
			Help: "Configured pixel count",
		}, func() float64 { return float64(sim.State().PixelCount) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbsim_sequencer_running",
			Help: "1 if the sequencer is running",
		}, func() float64 {
			if sim.State().Running {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbsim_flash_saves",
			Help: "Writes that asked to persist to flash",
		}, func() float64 { return float64(sim.State().Saves) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbsim_ack_violations",
			Help: "Requests sent while an acknowledgment was outstanding",
		}, func() float64 { return float64(sim.Violations()) }),
	)
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
