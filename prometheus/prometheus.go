// Package prometheus exposes the state of the sources in the Prometheus
// exposition format.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a registry of collectors that can be removed all at once
// when the app stops.
type Metrics interface {
	Register(cs prometheus.Collector) error
	UnregisterAll()
	Reader
}

// Reader exposes the collected metrics.
type Reader interface {
	HTTPHandler() http.Handler
}

type metrics struct {
	registry   *prometheus.Registry
	collectors []prometheus.Collector
	lock       sync.Mutex
}

func New() Metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
	}

	return m
}

func (m *metrics) Register(cs prometheus.Collector) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.registry.Register(cs); err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}

	m.collectors = append(m.collectors, cs)

	return nil
}

func (m *metrics) UnregisterAll() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, cs := range m.collectors {
		m.registry.Unregister(cs)
	}

	m.collectors = nil
}

func (m *metrics) HTTPHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
