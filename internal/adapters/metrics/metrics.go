// Package metrics exposes registry activity to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parksys/parking-service/internal/core/ports"
)

const namespace = "parking"

// Collector counts session events. It is registered as a registry
// publisher, so it only sees committed changes.
type Collector struct {
	registry  *prometheus.Registry
	checkIns  *prometheus.CounterVec
	checkOuts *prometheus.CounterVec
	revenue   prometheus.Counter
	minutes   prometheus.Histogram
	active    prometheus.Gauge
	resets    prometheus.Counter
}

var _ ports.SessionEventPublisher = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_ins_total",
			Help:      "Vehicles checked in, by vehicle type.",
		}, []string{"vehicle_type"}),
		checkOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_outs_total",
			Help:      "Vehicles checked out, by vehicle type.",
		}, []string{"vehicle_type"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charged_amount_total",
			Help:      "Sum of parking charges computed at check-out.",
		}),
		minutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stay_minutes",
			Help:      "Length of closed stays in minutes.",
			Buckets:   []float64{15, 30, 60, 120, 240, 480, 720, 1440},
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Vehicles currently parked.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Registry resets.",
		}),
	}

	c.registry.MustRegister(
		c.checkIns,
		c.checkOuts,
		c.revenue,
		c.minutes,
		c.active,
		c.resets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// SetActive seeds the active gauge, for stores that survive restarts.
func (c *Collector) SetActive(n int) {
	c.active.Set(float64(n))
}

func (c *Collector) PublishSessionEvent(ctx context.Context, evt ports.SessionEvent) error {
	vehicleType := string(evt.Session.VehicleType)
	switch evt.Type {
	case ports.SessionOpened:
		c.checkIns.WithLabelValues(vehicleType).Inc()
		c.active.Inc()
	case ports.SessionClosed:
		c.checkOuts.WithLabelValues(vehicleType).Inc()
		c.active.Dec()
		if evt.Session.TotalAmount > 0 {
			c.revenue.Add(evt.Session.TotalAmount)
		}
		c.minutes.Observe(float64(evt.Session.ParkingMinutes))
	case ports.SessionsReset:
		c.resets.Inc()
		c.active.Set(0)
	}
	return nil
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
