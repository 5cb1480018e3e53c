// Copyright 2026 Shala
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus collectors for the tenant connection
// registry. The admin server serves them on /metrics via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the collectors the connection manager reports into.
type Registry struct {
	TenantConnections prometheus.Gauge
	ConnectsTotal     *prometheus.CounterVec
	EvictionsTotal    *prometheus.CounterVec
	ProbeDuration     prometheus.Histogram
}

// New creates the collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer wires them into the default /metrics output;
// tests pass a private registry.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		TenantConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shala_db_tenant_connections",
			Help: "Number of tenant database connections currently cached",
		}),
		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shala_db_connects_total",
			Help: "Database connections established, by kind",
		}, []string{"kind"}),
		EvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shala_db_evictions_total",
			Help: "Tenant connections evicted from the registry, by reason",
		}, []string{"reason"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shala_db_liveness_probe_seconds",
			Help:    "Latency of connection liveness probes",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.TenantConnections, m.ConnectsTotal, m.EvictionsTotal, m.ProbeDuration)
	return m
}

// ObserveProbe records one liveness probe duration.
func (m *Registry) ObserveProbe(d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.Observe(d.Seconds())
}

// RecordConnect counts an established connection of the given kind
// ("system" or "tenant").
func (m *Registry) RecordConnect(kind string) {
	if m == nil {
		return
	}
	m.ConnectsTotal.WithLabelValues(kind).Inc()
}

// RecordEviction counts an evicted tenant connection by reason
// ("stale", "idle", or "shutdown").
func (m *Registry) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.EvictionsTotal.WithLabelValues(reason).Inc()
}

// SetTenantCount updates the cached-connection gauge.
func (m *Registry) SetTenantCount(n int) {
	if m == nil {
		return
	}
	m.TenantConnections.Set(float64(n))
}
