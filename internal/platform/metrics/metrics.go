package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	LoginAttempts       *prometheus.CounterVec
	OTPSent             *prometheus.CounterVec
	OTPVerified         *prometheus.CounterVec
	TokensRevoked       prometheus.Counter
	UsersCreated        prometheus.Counter
	ContentPublished    *prometheus.CounterVec
	ChatQueries         *prometheus.CounterVec
	Uploads             *prometheus.CounterVec
	UploadBytes         prometheus.Counter
	EmailsSent          prometheus.Counter
	EmailsFailed        prometheus.Counter
	MailQueueDepth      prometheus.Gauge
	AuditEvents         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intranet_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"method", "outcome"}),
		OTPSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_otp_sent_total",
			Help: "One-time codes issued by purpose",
		}, []string{"purpose"}),
		OTPVerified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_otp_verified_total",
			Help: "One-time code verifications by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		TokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "intranet_tokens_revoked_total",
			Help: "Access tokens revoked on logout",
		}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "intranet_users_created_total",
			Help: "Total number of users created in the system",
		}),
		ContentPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_content_published_total",
			Help: "Content items published by kind",
		}, []string{"kind"}),
		ChatQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_chatbot_queries_total",
			Help: "Chatbot questions by outcome (answered, unanswered, greeting)",
		}, []string{"outcome"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_uploads_total",
			Help: "File uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "intranet_upload_bytes_total",
			Help: "Bytes accepted for upload",
		}),
		EmailsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "intranet_emails_sent_total",
			Help: "Emails delivered",
		}),
		EmailsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "intranet_emails_failed_total",
			Help: "Emails dropped after exhausting retries",
		}),
		MailQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "intranet_mail_queue_depth",
			Help: "Messages waiting in the mail queue",
		}),
		AuditEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intranet_audit_events_total",
			Help: "Audit events emitted by action",
		}, []string{"action"}),
	}
}

// ObserveHTTPRequest records request latency. Satisfies the request log observer.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

func (m *Metrics) ObserveLogin(method, outcome string) {
	m.LoginAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveOTPSent(purpose string) {
	m.OTPSent.WithLabelValues(purpose).Inc()
}

func (m *Metrics) ObserveOTPVerified(purpose, outcome string) {
	m.OTPVerified.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) IncrementTokensRevoked() {
	m.TokensRevoked.Inc()
}

func (m *Metrics) ObservePublished(kind string) {
	m.ContentPublished.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveChatQuery(outcome string) {
	m.ChatQueries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpload(kind, outcome string, bytes int64) {
	m.Uploads.WithLabelValues(kind, outcome).Inc()
	if outcome == "success" && bytes > 0 {
		m.UploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) ObserveEmail(sent bool) {
	if sent {
		m.EmailsSent.Inc()
		return
	}
	m.EmailsFailed.Inc()
}

func (m *Metrics) SetMailQueueDepth(n int) {
	m.MailQueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveAuditEvent(action string) {
	m.AuditEvents.WithLabelValues(action).Inc()
}
