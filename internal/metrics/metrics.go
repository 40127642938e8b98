// Package metrics defines Prometheus metrics for the campaign pipeline:
// fan-out, delivery outcomes, throttling, and the stuck-campaign monitor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailblast_tasks_enqueued_total",
		Help: "Total number of recipient tasks published to the delivery queue",
	}, []string{"role"})
	MailSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailblast_mail_sent_total",
		Help: "Total number of mails accepted by the transport",
	})
	MailFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailblast_mail_failed_total",
		Help: "Total number of recipient deliveries marked failed",
	}, []string{"reason"})
	MailThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailblast_mail_throttled_total",
		Help: "Total number of throttle signals received from the transport",
	})
	TasksDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailblast_tasks_dead_lettered_total",
		Help: "Total number of tasks moved to the dead letter queue",
	})
	StuckCampaigns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailblast_stuck_campaigns_total",
		Help: "Stuck-campaign flags raised by the monitor sweep",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		TasksEnqueued,
		MailSent,
		MailFailed,
		MailThrottled,
		TasksDeadLettered,
		StuckCampaigns,
	)
}

// Handler exposes the registry for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
