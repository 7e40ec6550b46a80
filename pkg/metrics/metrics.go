package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments federation operations. A nil *Metrics is valid and
// records nothing, so tests can pass nil.
type Metrics struct {
	AuditEventsTotal   prometheus.Counter
	MerkleRootsTotal   prometheus.Counter
	PolicyPushTotal    *prometheus.CounterVec
	PolicyPullTotal    *prometheus.CounterVec
	SyncFailuresTotal  prometheus.Counter
	KnownOrganizations prometheus.Gauge
}

// New registers the federation metrics on the given registerer. A nil
// registerer selects the default prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuditEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "govfed_audit_events_total",
			Help: "Total number of federation events appended to the audit trail",
		}),
		MerkleRootsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "govfed_merkle_roots_total",
			Help: "Total number of Merkle roots committed over audit event batches",
		}),
		PolicyPushTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govfed_policy_push_total",
			Help: "Total number of policy pushes by result",
		}, []string{"result"}),
		PolicyPullTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govfed_policy_pull_total",
			Help: "Total number of policy pulls by result",
		}, []string{"result"}),
		SyncFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "govfed_sync_failures_total",
			Help: "Total number of peers that failed during a policy sync sweep",
		}),
		KnownOrganizations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "govfed_known_organizations",
			Help: "Current number of known remote organizations",
		}),
	}
}

func (m *Metrics) IncAuditEvents() {
	if m == nil {
		return
	}
	m.AuditEventsTotal.Inc()
}

func (m *Metrics) IncMerkleRoots() {
	if m == nil {
		return
	}
	m.MerkleRootsTotal.Inc()
}

func (m *Metrics) IncPolicyPush(ok bool) {
	if m == nil {
		return
	}
	m.PolicyPushTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) IncPolicyPull(ok bool) {
	if m == nil {
		return
	}
	m.PolicyPullTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) IncSyncFailures() {
	if m == nil {
		return
	}
	m.SyncFailuresTotal.Inc()
}

func (m *Metrics) SetKnownOrganizations(count int) {
	if m == nil {
		return
	}
	m.KnownOrganizations.Set(float64(count))
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
