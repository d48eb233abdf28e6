// Package metrics exposes Prometheus metrics for the plugin platform.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the plugin platform
type Metrics struct {
	registry *prometheus.Registry

	// Reload metrics
	ReloadsTotal   prometheus.Counter
	ReloadDuration prometheus.Histogram

	// Plugin metrics
	PluginsActive  prometheus.Gauge
	PluginsErrored prometheus.Gauge
	PluginsIgnored prometheus.Gauge

	// Tool metrics
	ToolsRegistered prometheus.Gauge

	// Hook metrics
	HookEmitsTotal  *prometheus.CounterVec
	HookErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ReloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plugin_reloads_total",
				Help: "Total number of plugin platform reloads",
			},
		),
		ReloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plugin_reload_duration_seconds",
				Help:    "Duration of plugin platform reloads in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		PluginsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugins_active",
				Help: "Number of active plugins after the last reload",
			},
		),
		PluginsErrored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugins_errored",
				Help: "Number of plugins that failed activation in the last reload",
			},
		),
		PluginsIgnored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugins_ignored",
				Help: "Number of duplicate plugins ignored in the last reload",
			},
		),

		ToolsRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "plugin_tools_registered",
				Help: "Number of tools registered by active plugins",
			},
		),

		HookEmitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_hook_emits_total",
				Help: "Total number of hook emissions",
			},
			[]string{"event"},
		),
		HookErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugin_hook_errors_total",
				Help: "Total number of hook handler failures",
			},
			[]string{"event", "mode"},
		),
	}

	registry.MustRegister(
		m.ReloadsTotal,
		m.ReloadDuration,
		m.PluginsActive,
		m.PluginsErrored,
		m.PluginsIgnored,
		m.ToolsRegistered,
		m.HookEmitsTotal,
		m.HookErrorsTotal,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
