// Package metrics holds the prometheus collectors shared across goveed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsNamespace = "goveed"

var (
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "commands_sent_total",
		Namespace: metricsNamespace,
		Help:      "Datagrams written to devices, including duplicate sends",
	}, []string{"cmd"})

	SendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "send_errors_total",
		Namespace: metricsNamespace,
		Help:      "Datagrams that failed to send",
	}, []string{"cmd"})

	FadeSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "fade_sessions_total",
		Namespace: metricsNamespace,
		Help:      "Finished fade sessions by outcome",
	}, []string{"outcome"})

	ActiveFades = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "active_fades",
		Namespace: metricsNamespace,
		Help:      "Fade sessions currently running",
	})

	FadeSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "fade_steps_total",
		Namespace: metricsNamespace,
		Help:      "Intermediate setter calls dispatched by fades",
	}, []string{"dimension"})

	RepliesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "replies_received_total",
		Namespace: metricsNamespace,
		Help:      "Datagrams decoded on the reply port",
	}, []string{"cmd"})

	KnownDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "known_devices",
		Namespace: metricsNamespace,
		Help:      "Devices currently in the registry",
	})
)
