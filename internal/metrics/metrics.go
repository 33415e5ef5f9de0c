package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_cycles_total",
			Help: "Detection and escalation cycles by result",
		},
		[]string{"result"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_cycle_duration_seconds",
			Help:    "Wall time of one detection and escalation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Event lifecycle metrics
	EventsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_events_opened_total",
			Help: "Check-in events opened by the inactivity detector",
		},
	)

	EventsEscalated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_events_escalated_total",
			Help: "Check-in events escalated to guardian alert",
		},
	)

	EventsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_closed_total",
			Help: "Check-in events closed by status",
		},
		[]string{"status"},
	)

	// Delivery metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_notifications_total",
			Help: "Notification attempts by channel, kind and outcome",
		},
		[]string{"channel", "kind", "outcome"},
	)

	// Invitation metrics
	InvitationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_invitations_total",
			Help: "Invitation codes by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// Relay metrics
	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_outbox_published_total",
			Help: "Outbox rows handled by the relay by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

const (
	ChannelPush  = "push"
	ChannelEmail = "email"

	KindSoftCheckIn   = "soft_checkin"
	KindGuardianAlert = "guardian_alert"

	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeUnregistered = "unregistered"
	OutcomeSkipped      = "skipped"
	OutcomeInvalid      = "invalid"
)

func init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(EventsOpened)
	prometheus.MustRegister(EventsEscalated)
	prometheus.MustRegister(EventsClosed)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(InvitationsTotal)
	prometheus.MustRegister(OutboxPublished)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures one operation for a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// Notification records one delivery attempt.
func Notification(channel, kind, outcome string) {
	NotificationsTotal.WithLabelValues(channel, kind, outcome).Inc()
}
