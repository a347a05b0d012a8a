// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the counters/histograms a caller may attach via
// Hooks.Metrics to observe handshake and record-layer activity without
// reaching into Conn internals. Grounded on backube-volsync's
// controller metrics (metrics.go registering a fixed set of
// prometheus.*Vec collectors against a caller-supplied Registerer
// rather than the package-global DefaultRegisterer), generalized from
// reconcile counters to handshake/record counters.
type Metrics struct {
	handshakesTotal   *prometheus.CounterVec
	handshakeDuration *prometheus.HistogramVec
	recordsTotal      *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	keyUpdatesTotal   *prometheus.CounterVec
}

// NewMetrics builds a Metrics collector set and registers it against
// reg. Passing prometheus.NewRegistry() (rather than the global
// DefaultRegisterer) keeps multiple Conn pools in one process from
// colliding on label sets in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		handshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlscore",
			Name:      "handshakes_total",
			Help:      "Completed handshakes by role, negotiated version and outcome.",
		}, []string{"role", "version", "result"}),
		handshakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tlscore",
			Name:      "handshake_duration_seconds",
			Help:      "Wall-clock duration of completed handshakes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role", "version"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlscore",
			Name:      "records_total",
			Help:      "Records processed by direction and content type.",
		}, []string{"direction", "content_type"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlscore",
			Name:      "alerts_total",
			Help:      "Alerts sent or received, by direction and description.",
		}, []string{"direction", "description"}),
		keyUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tlscore",
			Name:      "key_updates_total",
			Help:      "TLS 1.3 post-handshake KeyUpdate messages processed, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.handshakesTotal, m.handshakeDuration, m.recordsTotal, m.alertsTotal, m.keyUpdatesTotal)
	return m
}

func (m *Metrics) observeHandshake(role, version, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.handshakesTotal.WithLabelValues(role, version, result).Inc()
	m.handshakeDuration.WithLabelValues(role, version).Observe(d.Seconds())
}

func (m *Metrics) observeRecord(direction, contentType string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(direction, contentType).Inc()
}

func (m *Metrics) observeAlert(direction, description string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(direction, description).Inc()
}

func (m *Metrics) observeKeyUpdate(direction string) {
	if m == nil {
		return
	}
	m.keyUpdatesTotal.WithLabelValues(direction).Inc()
}
