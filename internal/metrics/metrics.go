// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "giveaway_bot"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	giveawaysStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "started_total",
			Help:      "Total number of giveaways started.",
		},
	)

	giveawaysResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "resolved_total",
			Help:      "Total number of giveaways that reached a terminal state.",
		},
		[]string{"status"},
	)

	activeGiveaways = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "active",
			Help:      "Giveaways currently collecting entries.",
		},
	)

	resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a giveaway after expiry.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"status"},
	)

	participants = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "participants",
			Help:      "Reactors evaluated per resolved giveaway.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	rerolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "giveaways",
			Name:      "rerolls_total",
			Help:      "Total number of rerolled winners.",
		},
	)

	displayFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "countdown",
			Name:      "refresh_failures_total",
			Help:      "Countdown edits that failed and were skipped.",
		},
	)

	engagementEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "events_total",
			Help:      "Chat events applied to open giveaway windows.",
		},
		[]string{"kind"},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "invocations_total",
			Help:      "Slash command invocations.",
		},
		[]string{"command", "success"},
	)

	archivePruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "pruned_total",
			Help:      "Archived giveaways removed by retention.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		giveawaysStarted,
		giveawaysResolved,
		activeGiveaways,
		resolutionDuration,
		participants,
		rerolls,
		displayFailures,
		engagementEvents,
		commands,
		archivePruned,
		httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler returns an HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordGiveawayStarted() {
	giveawaysStarted.Inc()
	activeGiveaways.Inc()
}

// RecordGiveawayResolved tracks a terminal transition. participantCount is
// ignored for cancellations, which never read the roster.
func RecordGiveawayResolved(status string, participantCount int, duration time.Duration) {
	giveawaysResolved.WithLabelValues(status).Inc()
	activeGiveaways.Dec()
	resolutionDuration.WithLabelValues(status).Observe(duration.Seconds())
	if participantCount >= 0 {
		participants.Observe(float64(participantCount))
	}
}

// SetActiveGiveaways resets the gauge, used after restart recovery.
func SetActiveGiveaways(n int) {
	activeGiveaways.Set(float64(n))
}

func RecordReroll() {
	rerolls.Inc()
}

func RecordDisplayFailure() {
	displayFailures.Inc()
}

func RecordEngagementEvent(kind string) {
	engagementEvents.WithLabelValues(kind).Inc()
}

func RecordCommand(command string, success bool) {
	commands.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}

func RecordArchivePruned(n int) {
	archivePruned.Add(float64(n))
}

func RecordHTTPRequest(method, path string, status int) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
