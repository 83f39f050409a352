package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission kinds used as the "kind" label.
const (
	KindAttendance   = "attendance"
	KindManualReview = "manual_review"

	// KindDispatched labels sends made by the queue dispatcher. In queue mode
	// the per-kind notification metrics only count enqueues.
	KindDispatched = "dispatched"
)

var (
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentara",
		Name:      "submissions_total",
		Help:      "Submissions handled, by kind and outcome.",
	}, []string{"kind", "outcome"})

	decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentara",
		Name:      "snapshot_decode_failures_total",
		Help:      "Embedded images that could not be decoded or stored.",
	}, []string{"purpose"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentara",
		Name:      "notifications_total",
		Help:      "Notification attempts, by kind and result.",
	}, []string{"kind", "result"})

	notifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sentara",
		Name:      "notification_duration_seconds",
		Help:      "Time spent handing a notification to the notifier.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// Submission records the final outcome of one submission ("ok", "invalid", "error").
func Submission(kind, outcome string) {
	submissions.WithLabelValues(kind, outcome).Inc()
}

// DecodeFailure counts an image that was supplied but not stored.
func DecodeFailure(purpose string) {
	decodeFailures.WithLabelValues(purpose).Inc()
}

// Notification records one notifier call.
func Notification(kind string, took time.Duration, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notifications.WithLabelValues(kind, result).Inc()
	notifyDuration.WithLabelValues(kind).Observe(took.Seconds())
}
