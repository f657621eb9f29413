package samillogger

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the last published status as prometheus gauges.
type Metrics struct {
	energy      prometheus.Gauge
	power       prometheus.Gauge
	temperature prometheus.Gauge
	voltage     prometheus.Gauge
	samples     prometheus.Gauge
	publishes   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "samillogger", Name: name, Help: help})
	}
	m := &Metrics{
		energy:      gauge("energy_today_wh", "Published energy generated today in Wh."),
		power:       gauge("average_power_w", "Average power over the last publish interval."),
		temperature: gauge("average_temperature_celsius", "Average inverter temperature over the last publish interval."),
		voltage:     gauge("average_pv_voltage_v", "Average DC voltage over the last publish interval."),
		samples:     gauge("interval_samples", "Samples gathered in the last publish interval."),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "samillogger",
			Name:      "publishes_total",
			Help:      "Status publishes by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.energy, m.power, m.temperature, m.voltage, m.samples, m.publishes)
	return m
}

// Record implements Sink. Averages keep their previous value for intervals
// without samples.
func (m *Metrics) Record(_ context.Context, d Delivery) error {
	result := "ok"
	if !d.Delivered() {
		result = "error"
	}
	m.publishes.WithLabelValues(result).Inc()

	rec := d.Record
	m.energy.Set(rec.Energy)
	m.samples.Set(float64(rec.Samples))
	if rec.Averages != nil {
		m.power.Set(rec.Averages.Power)
		m.temperature.Set(rec.Averages.Temperature)
		m.voltage.Set(rec.Averages.Voltage)
	}
	return nil
}
