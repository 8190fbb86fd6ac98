// Package metrics exposes prometheus collectors for authentication outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CodeOK labels successful responses.
const CodeOK = "OK"

// Auth holds the authentication counters on a private registry.
type Auth struct {
	reg        *prometheus.Registry
	requests   *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// NewAuth registers the auth collectors plus the Go and process collectors.
func NewAuth() *Auth {
	reg := prometheus.NewRegistry()
	m := &Auth{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sd",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Auth endpoint responses by endpoint and result code.",
		}, []string{"endpoint", "code"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sd",
			Subsystem: "auth",
			Name:      "middleware_rejections_total",
			Help:      "Requests rejected by the mandatory auth middleware, by code.",
		}, []string{"code"}),
	}
	reg.MustRegister(
		m.requests,
		m.rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Request counts one endpoint response. code is an error code or CodeOK.
func (m *Auth) Request(endpoint, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, code).Inc()
}

// Rejection counts one mandatory-middleware rejection.
func (m *Auth) Rejection(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Auth) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
