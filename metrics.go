package hlswalk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirror alorle-iptv-manager/metrics/metrics.go and
// Emibrown-HLS-Playlist-Orchestrator's prometheus wiring: plain promauto
// globals rather than a per-Walker registry, since every Walker in a
// process shares the same process-wide metric surface.
var (
	inflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlswalk_inflight_fetches",
		Help: "Number of fetch callbacks currently outstanding.",
	})

	scheduledTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlswalk_scheduled_timers",
		Help: "Number of refresh timers currently pending.",
	})

	playlistsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlswalk_playlists_emitted_total",
		Help: "Total number of playlists pushed to the event stream.",
	}, []string{"kind"})

	segmentsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlswalk_segments_emitted_total",
		Help: "Total number of segments pushed to the event stream.",
	})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlswalk_fetch_errors_total",
		Help: "Total number of loader/parse errors encountered, by resource kind.",
	}, []string{"resource"})

	refetchesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlswalk_refetches_total",
		Help: "Total number of refetches scheduled, by playlist kind and reason.",
	}, []string{"kind", "reason"})
)
