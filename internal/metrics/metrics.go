// Package metrics holds the Prometheus collectors of the add-on.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mortimmy"

// Registry contains every collector of this package plus the go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	installationsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "installations",
			Help:      "Number of installations seen by the last refresh cycle.",
		},
	)

	lifecycleCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Install and uninstall requests by outcome.",
		},
		[]string{
			"action",
			"success",
		},
	)

	credentialRefreshCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "refresh_total",
			Help:      "Credential acquisitions by result.",
		},
		[]string{
			"result",
		},
	)

	refreshCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Duration of a full credential refresh cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	disabledInstallationsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "credentials",
			Name:      "disabled_installations",
			Help:      "Installations skipped by the refresher after an invalid token response.",
		},
	)

	webhookCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by webhook and response status.",
		},
		[]string{
			"webhook",
			"status",
		},
	)

	notificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Outbound room notifications by result.",
		},
		[]string{
			"success",
		},
	)

	hostCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "capabilities_cache_total",
			Help:      "Host capabilities document lookups by cache hit.",
		},
		[]string{
			"hit",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		installationsGauge,
		lifecycleCounter,
		credentialRefreshCounter,
		refreshCycleDuration,
		disabledInstallationsGauge,
		webhookCounter,
		notificationCounter,
		hostCacheCounter,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

type Observer struct {
	start   time.Time
	observe func(time.Duration)
}

func newObserver(f func(time.Duration)) *Observer {
	return &Observer{
		start:   time.Now(),
		observe: f,
	}
}

func (o *Observer) ObserveDeferred() {
	o.observe(time.Since(o.start))
}

// ObserveRefreshCycle starts timing a refresh cycle, call ObserveDeferred when it ends.
func ObserveRefreshCycle() *Observer {
	return newObserver(func(d time.Duration) {
		refreshCycleDuration.Observe(d.Seconds())
	})
}

func SetInstallations(n int) {
	installationsGauge.Set(float64(n))
}

func SetDisabledInstallations(n int) {
	disabledInstallationsGauge.Set(float64(n))
}

func IncLifecycle(action string, success bool) {
	lifecycleCounter.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

// IncCredentialRefresh counts one acquisition. result is one of "ok", "failed" or "invalid".
func IncCredentialRefresh(result string) {
	credentialRefreshCounter.WithLabelValues(result).Inc()
}

func IncWebhookDelivery(webhook string, status int) {
	webhookCounter.WithLabelValues(webhook, strconv.Itoa(status)).Inc()
}

func IncNotification(success bool) {
	notificationCounter.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func IncHostCapabilitiesCache(hit bool) {
	hostCacheCounter.WithLabelValues(strconv.FormatBool(hit)).Inc()
}
