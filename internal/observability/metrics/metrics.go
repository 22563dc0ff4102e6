package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "communityhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	applicationSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityhub_application_submissions_total",
		Help: "Count of application submission attempts by department and result",
	}, []string{"department", "result"})

	reviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityhub_review_decisions_total",
		Help: "Count of application review decisions",
	}, []string{"action"})

	interviewOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityhub_interview_outcomes_total",
		Help: "Count of recorded interview outcomes",
	}, []string{"result"})

	roleSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "communityhub_role_syncs_total",
		Help: "Count of external role synchronization attempts by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission records an application submission attempt
func ObserveSubmission(department, result string) {
	applicationSubmissions.WithLabelValues(department, result).Inc()
}

// ObserveReview records a review decision
func ObserveReview(action string) {
	reviewDecisions.WithLabelValues(action).Inc()
}

// ObserveInterview records an interview outcome
func ObserveInterview(result string) {
	interviewOutcomes.WithLabelValues(result).Inc()
}

// ObserveRoleSync records a role synchronization attempt with a result
// label: applied, unchanged, preserved, no_mapping, cached, or error
func ObserveRoleSync(result string) {
	roleSyncs.WithLabelValues(result).Inc()
}
