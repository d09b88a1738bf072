package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for lifecycle transitions.
type Metrics struct {
	ReferralsSubmitted      prometheus.Counter
	DraftReferralsDeleted   prometheus.Counter
	AssessmentsRejected     prometheus.Counter
	AssessmentsDeallocated  prometheus.Counter
	AssessmentsReallocated  prometheus.Counter
	PersonBatchResolveBatch prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ReferralsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casework_referrals_submitted_total",
			Help: "Total number of referral applications submitted",
		}),
		DraftReferralsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casework_draft_referrals_deleted_total",
			Help: "Total number of draft referrals soft-deleted",
		}),
		AssessmentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casework_assessments_rejected_total",
			Help: "Total number of assessments rejected",
		}),
		AssessmentsDeallocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casework_assessments_deallocated_total",
			Help: "Total number of assessments deallocated",
		}),
		AssessmentsReallocated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casework_assessments_reallocated_total",
			Help: "Total number of assessments reallocated",
		}),
		PersonBatchResolveBatch: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "casework_person_batch_resolve_size",
			Help:    "Number of CRNs per upstream person resolution call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

func (m *Metrics) IncReferralsSubmitted()     { m.ReferralsSubmitted.Inc() }
func (m *Metrics) IncDraftReferralsDeleted()  { m.DraftReferralsDeleted.Inc() }
func (m *Metrics) IncAssessmentsRejected()    { m.AssessmentsRejected.Inc() }
func (m *Metrics) IncAssessmentsDeallocated() { m.AssessmentsDeallocated.Inc() }
func (m *Metrics) IncAssessmentsReallocated() { m.AssessmentsReallocated.Inc() }
func (m *Metrics) ObservePersonBatch(size int) {
	m.PersonBatchResolveBatch.Observe(float64(size))
}
