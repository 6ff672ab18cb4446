package hlswalk

import "github.com/mohae/deepcopy"

// emitCopy returns an independent copy of a master or media playlist,
// including its variant/rendition/session lists or segment list (C2 Cloner,
// spec.md §4.2). Segments are cloned along with their parent media playlist
// because deepcopy walks the whole graph, but their Data payload slices are
// shared rather than duplicated — large binary payloads dominate memory and
// the consumer is trusted not to mutate them (§4.2 rationale, §9 cloning
// policy).
func emitCopy(p Playlist) Playlist {
	switch p.Kind {
	case KindMaster:
		clone := deepcopy.Copy(p.Master).(*MasterPlaylist)
		return Playlist{Kind: KindMaster, Master: clone}
	default:
		clone := deepcopy.Copy(p.Media).(*MediaPlaylist)
		restoreSharedPayloads(p.Media, clone)
		return Playlist{Kind: KindMedia, Media: clone}
	}
}

// restoreSharedPayloads re-points the cloned segments' byte slices at the
// originals after a deepcopy, so large segment/key/map payloads are shared
// views rather than duplicated allocations.
func restoreSharedPayloads(orig, clone *MediaPlaylist) {
	for i, seg := range clone.Segments {
		origSeg := orig.Segments[i]
		seg.Data = origSeg.Data
		if seg.Key != nil {
			seg.Key.Data = origSeg.Key.Data
		}
		if seg.Map != nil {
			seg.Map.Data = origSeg.Map.Data
		}
	}
}
