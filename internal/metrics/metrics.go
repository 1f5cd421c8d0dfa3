// Package metrics holds Prometheus instruments used across the console. All
// collectors are registered with the global registry, so serving
// promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	NotificationPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_notification_polls_total",
			Help: "Notification polls by result (ok, error).",
		}, []string{"result"})

	PushReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_push_reconnects_total",
			Help: "Push channel reconnect attempts.",
		})

	PushEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_push_events_total",
			Help: "Notification events received over the push channel.",
		})

	Toasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_toasts_total",
			Help: "Toasts shown by level.",
		}, []string{"level"})

	LeadTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_lead_transitions_total",
			Help: "Lead status transitions by target status and result.",
		}, []string{"status", "result"})

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_uploads_total",
			Help: "File uploads by result (ok, error, discarded).",
		}, []string{"result"})

	UploadedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_uploaded_bytes_total",
			Help: "Bytes of file content sent to the media endpoint.",
		})
)

func init() {
	prometheus.MustRegister(
		NotificationPolls,
		PushReconnects,
		PushEvents,
		Toasts,
		LeadTransitions,
		Uploads,
		UploadedBytes,
	)
}
