package hlswalk

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// C4 Refresh scheduler (spec.md §4.4). These functions only compute a
// delay and hand it to the walk controller's postTick helper, which is
// responsible for the "no-op once ended" rule (pendingRegistry.schedule is
// only ever called from scheduleMasterRefresh/scheduleMediaRefresh while
// the controller still holds state == stateReading).

// scheduleMasterRefresh reschedules a master-playlist refetch, whether
// because it came back unchanged or because needToReload found something
// still to load.
func (w *Walker) scheduleMasterRefresh(uri string, reason string) {
	if w.state != stateReading {
		return
	}
	delay := w.opts.MasterPlaylistTimeout
	refetchesScheduled.WithLabelValues("master", reason).Inc()
	w.opts.Logger.Debug("schedule master refresh",
		zap.String("uri", uri), zap.String("reason", reason), zap.Duration("delay", delay))
	w.pending.schedule(delay, func(token uuid.UUID) { w.postTick(token, uri) })
}

// scheduleMediaRefresh reschedules a media-playlist refetch per spec.md
// §4.4: unchanged content gets half the target duration, a live playlist
// that did change gets a full target duration, and a terminal playlist
// (endlist or VOD) never gets rescheduled.
func (w *Walker) scheduleMediaRefresh(uri string, m *MediaPlaylist, unchanged bool) {
	if m.terminal() {
		return
	}
	if w.state != stateReading {
		return
	}
	var delay time.Duration
	reason := "live"
	if unchanged {
		delay = time.Duration(float64(m.TargetDuration) * 0.5 * float64(time.Second))
		reason = "unchanged"
	} else {
		delay = time.Duration(m.TargetDuration * float64(time.Second))
	}
	refetchesScheduled.WithLabelValues("media", reason).Inc()
	w.opts.Logger.Debug("schedule media refresh",
		zap.String("uri", uri), zap.String("reason", reason), zap.Duration("delay", delay))
	w.pending.schedule(delay, func(token uuid.UUID) { w.postTick(token, uri) })
}
