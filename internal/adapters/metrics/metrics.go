package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for authentication and the audit pipeline.
type Metrics struct {
	IssuedTokens        prometheus.Counter
	RevokedTokens       prometheus.Counter
	ReusedTokens        prometheus.Counter
	FailedLogins        prometheus.Counter
	RegisteredUsers     prometheus.Counter
	Commits             *prometheus.CounterVec
	AuditEntries        prometheus.Counter
	AuditEntriesPerSave prometheus.Histogram
	FeedEvents          *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		IssuedTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		}),
		RevokedTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_refresh_tokens_revoked_total",
			Help: "Total number of refresh tokens revoked",
		}),
		ReusedTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_refresh_token_reuse_total",
			Help: "Total number of rotated refresh tokens presented again",
		}),
		FailedLogins: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
		RegisteredUsers: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_users_registered_total",
			Help: "Total number of self-registered users",
		}),
		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identityapi_unit_of_work_commits_total",
			Help: "Total number of unit of work commits by outcome",
		}, []string{"outcome"}),
		AuditEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "identityapi_audit_entries_total",
			Help: "Total number of audit entries persisted",
		}),
		AuditEntriesPerSave: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identityapi_audit_entries_per_commit",
			Help:    "Number of audit entries written per successful commit",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		FeedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identityapi_audit_feed_events_total",
			Help: "Audit feed events handled by the dispatcher, by topic and outcome",
		}, []string{"topic", "outcome"}),
	}
}

func (m *Metrics) TokenIssued() {
	m.IssuedTokens.Inc()
}

func (m *Metrics) TokensRevoked(n int) {
	if n > 0 {
		m.RevokedTokens.Add(float64(n))
	}
}

func (m *Metrics) TokenReuseDetected() {
	m.ReusedTokens.Inc()
}

func (m *Metrics) LoginFailed() {
	m.FailedLogins.Inc()
}

func (m *Metrics) UserRegistered() {
	m.RegisteredUsers.Inc()
}

// CommitFinished records the outcome of a unit of work commit.
func (m *Metrics) CommitFinished(entries int, err error) {
	if err != nil {
		m.Commits.WithLabelValues("failed").Inc()
		return
	}
	m.Commits.WithLabelValues("committed").Inc()
	m.AuditEntries.Add(float64(entries))
	m.AuditEntriesPerSave.Observe(float64(entries))
}

func (m *Metrics) FeedDelivered(topic string) {
	m.FeedEvents.WithLabelValues(topic, "delivered").Inc()
}

func (m *Metrics) FeedRetried(topic string) {
	m.FeedEvents.WithLabelValues(topic, "retried").Inc()
}

func (m *Metrics) FeedParked(topic string) {
	m.FeedEvents.WithLabelValues(topic, "parked").Inc()
}
