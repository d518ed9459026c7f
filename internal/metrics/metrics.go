package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Open browser tabs hosting a session
	openTabs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qknou_open_tabs",
			Help: "Current number of open practice tabs",
		},
	)

	// Sessions mounted, by mode: memorize/test
	sessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qknou_sessions_started_total",
			Help: "Total number of exam sessions mounted",
		},
		[]string{"mode"},
	)

	// Exam submissions, by trigger: manual/timeout and status: success/failure
	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qknou_exam_submissions_total",
			Help: "Total number of exam submissions",
		},
		[]string{"trigger", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qknou_upstream_request_duration_seconds",
			Help:    "Time spent in exam API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "status"},
	)

	questionCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qknou_question_cache_total",
			Help: "Question set cache lookups",
		},
		[]string{"result"}, // hit/miss
	)
)

func TabOpened() { openTabs.Inc() }
func TabClosed() { openTabs.Dec() }

func SessionStarted(mode string) { sessionsStarted.WithLabelValues(mode).Inc() }

func Submission(trigger string, err error) {
	submissions.WithLabelValues(trigger, status(err)).Inc()
}

// ObserveUpstream records the duration of an exam API call started at start.
func ObserveUpstream(op string, start time.Time, err error) {
	upstreamDuration.WithLabelValues(op, status(err)).Observe(time.Since(start).Seconds())
}

func CacheLookup(hit bool) {
	if hit {
		questionCache.WithLabelValues("hit").Inc()
		return
	}
	questionCache.WithLabelValues("miss").Inc()
}

func Handler() http.Handler { return promhttp.Handler() }

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
