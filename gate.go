package hlswalk

// C7 Emit gate (spec.md §4.7).
//
// A master playlist is emitted once all its session-data entries and
// session-keys are loaded; it may reach that state immediately on parse or
// only after later subresource arrivals, but it is emitted at most once per
// distinct content hash (spec.md §9 open question 2). A segment is emitted
// once its data, and any referenced key/map, are populated. A media
// playlist is emitted unconditionally, immediately on parse.

// tryEmitMaster re-checks the gate for m and emits it if the predicate has
// just flipped true for this content hash. Emitting also flushes any
// Media/Segment emissions that arrived through m before m itself was ready
// to emit, preserving spec.md §5's ordering guarantee (see
// emitGatedByMaster).
func (w *Walker) tryEmitMaster(m *MasterPlaylist) {
	if !m.ready() {
		return
	}
	if w.masterEmitted[m.URI] == m.Hash {
		return
	}
	w.masterEmitted[m.URI] = m.Hash
	playlistsEmitted.WithLabelValues("master").Inc()
	w.emit(Event{Kind: EventMaster, Master: emitCopy(Playlist{Kind: KindMaster, Master: m}).Master})

	deferred := w.pendingEmits[m.URI]
	delete(w.pendingEmits, m.URI)
	for _, fn := range deferred {
		fn()
	}
}

// emitGatedByMaster holds back emit, a closure that actually pushes an
// Event, until the master playlist that discovered mediaURI (if any) has
// itself been emitted at least once. Without this, a variant or rendition's
// media-playlist fetch can complete and want to emit before its master's
// own session-data/session-key gate clears, since both round-trip through
// fetchAsync independently (spec.md §5's ordering guarantee: "a master
// playlist is emitted before any variant media playlist discovered through
// it").
func (w *Walker) emitGatedByMaster(mediaURI string, emit func()) {
	masterURI, hasMaster := w.mediaMaster[mediaURI]
	if !hasMaster {
		emit()
		return
	}
	if _, emitted := w.masterEmitted[masterURI]; emitted {
		emit()
		return
	}
	w.pendingEmits[masterURI] = append(w.pendingEmits[masterURI], emit)
}

// emitMedia unconditionally emits a media playlist as soon as it has been
// parsed (spec.md §4.7: "A media playlist is emitted as soon as it is
// parsed, before any segments arrive"), subject to emitGatedByMaster.
func (w *Walker) emitMedia(m *MediaPlaylist) {
	w.emitGatedByMaster(m.URI, func() {
		playlistsEmitted.WithLabelValues("media").Inc()
		w.emit(Event{Kind: EventMedia, Media: emitCopy(Playlist{Kind: KindMedia, Media: m}).Media})
	})
}

// tryEmitSegment re-checks the gate for seg and emits it at most once per
// segment URI within mediaURI's lifetime (spec.md §8, "Completeness of
// emission").
func (w *Walker) tryEmitSegment(mediaURI string, seg *Segment) {
	if !seg.ready() {
		return
	}
	emitted := w.segmentEmitted[mediaURI]
	if emitted == nil {
		emitted = make(map[string]bool)
		w.segmentEmitted[mediaURI] = emitted
	}
	queued := w.segmentQueued[mediaURI]
	if queued == nil {
		queued = make(map[string]bool)
		w.segmentQueued[mediaURI] = queued
	}
	// queued guards against re-entering emitGatedByMaster a second time
	// for the same segment while its first enqueue is still waiting on a
	// gated master (e.g. a key and a map both landing and re-checking the
	// gate before the master ever clears); emitted is only set once the
	// gated closure actually runs, so a segment stuck behind a master that
	// never emits (SPEC_FULL.md §9 open question 1) is never mistaken for
	// delivered.
	if emitted[seg.URI] || queued[seg.URI] {
		return
	}
	queued[seg.URI] = true
	w.emitGatedByMaster(mediaURI, func() {
		emitted[seg.URI] = true
		segmentsEmitted.Inc()
		clone := *seg
		w.emit(Event{Kind: EventSegment, Segment: &clone})
	})
}

// emitError pushes an Error event (spec.md §6, §7).
func (w *Walker) emitError(err error) {
	w.emit(Event{Kind: EventError, Err: err})
}
