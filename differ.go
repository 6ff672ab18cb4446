package hlswalk

import "go.uber.org/zap"

// C5 Playlist differ / updater (spec.md §4.5). Diffs are always by URI,
// never by position (spec.md §4.5, "Ordering and tie-breaks"), and every
// replace is a swap of the whole cache entry rather than an in-place
// mutation (spec.md §3, "Lifecycles").

// updateMaster processes a freshly parsed master playlist fetched from
// uri. It is only ever called from the controller's single goroutine.
func (w *Walker) updateMaster(p *MasterPlaylist) {
	if w.state != stateReading {
		panicInvariant("updateMaster", "called outside state reading")
	}

	old := w.masters[p.URI]
	if old != nil && old.Hash == p.Hash {
		// Hash idempotence (spec.md §8): no cache replacement, no
		// subresource fetches, just a reschedule.
		w.scheduleMasterRefresh(p.URI, "unchanged")
		return
	}

	newVariantURIs := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		newVariantURIs[v.URI] = true
	}
	if old != nil {
		for _, v := range old.Variants {
			if !newVariantURIs[v.URI] {
				delete(w.medias, v.URI)
				delete(w.segmentEmitted, v.URI)
				delete(w.segmentQueued, v.URI)
				delete(w.mediaMaster, v.URI)
			}
		}
	}

	selected := make([]string, 0, len(p.Variants))
	variantIdx := w.opts.Variants(p.Variants)
	if variantIdx == nil {
		variantIdx = selectAll(len(p.Variants))
	}
	for _, idx := range variantIdx {
		if idx < 0 || idx >= len(p.Variants) {
			continue
		}
		v := p.Variants[idx]
		selected = append(selected, v.URI)
		w.mediaMaster[v.URI] = p.URI
		if _, ok := w.medias[v.URI]; !ok {
			w.fetchMediaPlaylist(v.URI)
		}
	}

	allRenditions := flattenRenditions(p.Renditions)
	renditionIdx := w.opts.Renditions(allRenditions)
	if renditionIdx == nil {
		renditionIdx = selectAll(len(allRenditions))
	}
	for _, idx := range renditionIdx {
		if idx < 0 || idx >= len(allRenditions) {
			continue
		}
		r := allRenditions[idx]
		if r.URI == "" {
			continue
		}
		selected = append(selected, r.URI)
		w.mediaMaster[r.URI] = p.URI
		if _, ok := w.medias[r.URI]; !ok {
			w.fetchMediaPlaylist(r.URI)
		}
	}

	w.masters[p.URI] = p
	w.masterSelected[p.URI] = selected

	if w.needToReload(selected) {
		w.scheduleMasterRefresh(p.URI, "reload")
	}

	w.tryEmitMaster(p)
	for _, sd := range p.SessionData {
		if !sd.loaded() {
			sd := sd
			w.fetchSessionDataEntry(sd, func() { w.tryEmitMaster(p) })
		}
	}
	for _, sk := range p.SessionKeys {
		if !sk.loaded() {
			sk := sk
			w.fetchSessionKeyData(sk, func() { w.tryEmitMaster(p) })
		}
	}
}

// needToReload implements spec.md §4.5 point 4: true iff some selected
// variant or rendition has no media-playlist cache entry yet, or has one
// that is still live.
func (w *Walker) needToReload(selected []string) bool {
	for _, uri := range selected {
		entry, ok := w.medias[uri]
		if !ok || !entry.terminal() {
			return true
		}
	}
	return false
}

func flattenRenditions(byType map[MediaType][]Rendition) []Rendition {
	var out []Rendition
	for _, t := range []MediaType{MediaTypeAudio, MediaTypeVideo, MediaTypeSubtitles, MediaTypeClosedCaptions} {
		out = append(out, byType[t]...)
	}
	return out
}

// updateMedia processes a freshly parsed media playlist fetched from uri.
func (w *Walker) updateMedia(p *MediaPlaylist) {
	if w.state != stateReading {
		panicInvariant("updateMedia", "called outside state reading")
	}

	old := w.medias[p.URI]
	if old != nil && old.Hash == p.Hash {
		w.scheduleMediaRefresh(p.URI, old, true)
		return
	}

	oldByURI := make(map[string]*Segment)
	if old != nil {
		for _, s := range old.Segments {
			oldByURI[s.URI] = s
		}
	}

	keyCache := make(map[string]*Key)
	mapCache := make(map[string]*Map)
	keyWaiters := make(map[string][]*Segment)
	mapWaiters := make(map[string][]*Segment)

	for _, seg := range p.Segments {
		if prev, ok := oldByURI[seg.URI]; ok {
			// Surviving segment: inherit fetched slots rather than
			// refetching (spec.md §3, "Lifecycles"; §8 scenario 6).
			seg.Data = prev.Data
			seg.MimeType = prev.MimeType
			if seg.Key != nil && prev.Key != nil {
				seg.Key.Data = prev.Key.Data
				seg.Key.MimeType = prev.Key.MimeType
			}
			if seg.Map != nil && prev.Map != nil {
				seg.Map.Data = prev.Map.Data
				seg.Map.MimeType = prev.Map.MimeType
			}
			continue
		}
		w.collectNewSegment(seg, keyCache, mapCache, keyWaiters, mapWaiters)
	}
	w.fetchCoalesced(p.URI, keyCache, mapCache, keyWaiters, mapWaiters)
	for _, seg := range p.Segments {
		seg := seg
		if _, ok := oldByURI[seg.URI]; !ok {
			w.fetchSegmentData(seg, func() { w.tryEmitSegment(p.URI, seg) })
		}
	}

	w.medias[p.URI] = p
	w.emitMedia(p)
	for _, seg := range p.Segments {
		w.tryEmitSegment(p.URI, seg)
	}

	if p.terminal() {
		if w.allMediaTerminal() {
			w.state = stateEnded
			w.opts.Logger.Info("all media playlists terminal", zap.String("uri", p.URI))
			w.maybeClose()
		}
		return
	}
	w.scheduleMediaRefresh(p.URI, p, false)
}

// collectNewSegment coalesces a brand-new segment's key/map references
// with any other new segment in the same refresh that shares the same
// key/map URI, so each resource is only fetched once (spec.md §4.6 is
// silent on this; it's a direct generalization of the same-URI dedup the
// differ already performs for segments and playlists).
func (w *Walker) collectNewSegment(seg *Segment, keyCache map[string]*Key, mapCache map[string]*Map, keyWaiters, mapWaiters map[string][]*Segment) {
	if seg.Key != nil {
		if shared, ok := keyCache[seg.Key.URI]; ok {
			seg.Key = shared
		} else {
			keyCache[seg.Key.URI] = seg.Key
		}
		keyWaiters[seg.Key.URI] = append(keyWaiters[seg.Key.URI], seg)
	}
	if seg.Map != nil {
		if shared, ok := mapCache[seg.Map.URI]; ok {
			seg.Map = shared
		} else {
			mapCache[seg.Map.URI] = seg.Map
		}
		mapWaiters[seg.Map.URI] = append(mapWaiters[seg.Map.URI], seg)
	}
}

// fetchCoalesced issues exactly one fetch per distinct key/map URI
// collected by collectNewSegment, notifying every waiting segment's emit
// gate once that fetch completes.
func (w *Walker) fetchCoalesced(mediaURI string, keyCache map[string]*Key, mapCache map[string]*Map, keyWaiters, mapWaiters map[string][]*Segment) {
	for uri, k := range keyCache {
		k := k
		waiters := keyWaiters[uri]
		w.fetchKeyData(k, func() {
			for _, seg := range waiters {
				w.tryEmitSegment(mediaURI, seg)
			}
		})
	}
	for uri, m := range mapCache {
		m := m
		waiters := mapWaiters[uri]
		w.fetchMapData(m, func() {
			for _, seg := range waiters {
				w.tryEmitSegment(mediaURI, seg)
			}
		})
	}
}

// allMediaTerminal reports whether every variant or rendition selected by a
// cached master has a media-playlist cache entry, and every cached media
// playlist has reached a terminal state (spec.md §4.5 point 3, §3
// invariant 6). A selected playlist whose fetch has not landed yet keeps
// the walk in reading.
func (w *Walker) allMediaTerminal() bool {
	for _, selected := range w.masterSelected {
		for _, uri := range selected {
			if _, ok := w.medias[uri]; !ok {
				return false
			}
		}
	}
	for _, m := range w.medias {
		if !m.terminal() {
			return false
		}
	}
	return true
}
