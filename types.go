package hlswalk

// Kind discriminates the two playlist shapes a URI can resolve to.
type Kind int

const (
	KindMaster Kind = iota
	KindMedia
)

// PlaylistType mirrors the HLS #EXT-X-PLAYLIST-TYPE tag plus the implicit
// live-sliding-window case when the tag is absent.
type PlaylistType int

const (
	PlaylistTypeLiveSliding PlaylistType = iota
	PlaylistTypeEvent
	PlaylistTypeVOD
)

// ByteRange is a segment or map sub-range within its resource, in bytes.
type ByteRange struct {
	Offset int64
	Length int64 // 0 means "rest of buffer"
}

// Variant is one bitrate/codec alternative referenced by a master playlist.
type Variant struct {
	URI        string
	Bandwidth  int
	Codecs     string
	Resolution string
}

// MediaType identifies the kind of alternate rendition.
type MediaType int

const (
	MediaTypeAudio MediaType = iota
	MediaTypeVideo
	MediaTypeSubtitles
	MediaTypeClosedCaptions
)

// Rendition is an alternate audio/video/subtitle/closed-caption track.
// URI is empty when the rendition has no independent media playlist (e.g.
// a muxed-in audio track); such renditions are never fetched.
type Rendition struct {
	Type     MediaType
	GroupID  string
	Name     string
	URI      string
	Language string
}

// SessionDataEntry is master-playlist metadata declared by EXT-X-SESSION-DATA.
// Exactly one of Value or URI is set by the parser; Data is filled in once the
// URI variant has been fetched and parsed as JSON.
type SessionDataEntry struct {
	Key   string
	Value string // inline value, already "loaded"
	URI   string // fetch target when Value is empty
	Data  any    // parsed JSON, filled in once URI has been fetched
}

func (e *SessionDataEntry) loaded() bool {
	return e.Value != "" || e.Data != nil
}

// SessionKey is master-playlist key material declared by EXT-X-SESSION-KEY.
type SessionKey struct {
	URI      string
	Method   string
	IV       string
	Data     []byte
	MimeType string
}

func (k *SessionKey) loaded() bool {
	return k.Data != nil
}

// Key is segment-level encryption key material (EXT-X-KEY).
type Key struct {
	URI      string
	Method   string
	IV       string
	Data     []byte
	MimeType string
}

// Map is an initialization byte-sequence required to decode segments that
// reference it (EXT-X-MAP).
type Map struct {
	URI       string
	ByteRange *ByteRange
	Data      []byte
	MimeType  string
}

// Segment is a single media-playlist entry (EXT-X-SEGMENT / #EXTINF line).
type Segment struct {
	URI       string
	Duration  float64
	Sequence  int
	ByteRange *ByteRange
	Key       *Key
	Map       *Map

	Data     []byte
	MimeType string
}

// ready reports whether the segment's data, and any referenced key/map, have
// all been populated (§3 invariant 3, §4.7).
func (s *Segment) ready() bool {
	if s.Data == nil {
		return false
	}
	if s.Key != nil && s.Key.Data == nil {
		return false
	}
	if s.Map != nil && s.Map.Data == nil {
		return false
	}
	return true
}

// MasterPlaylist is the variant-A playlist described in spec.md §3.
type MasterPlaylist struct {
	URI  string
	Hash string

	Variants    []Variant
	Renditions  map[MediaType][]Rendition
	SessionData []*SessionDataEntry
	SessionKeys []*SessionKey
}

// ready reports whether every session-data entry and session-key has been
// loaded (§4.7, §3 invariant 4).
func (m *MasterPlaylist) ready() bool {
	for _, sd := range m.SessionData {
		if !sd.loaded() {
			return false
		}
	}
	for _, sk := range m.SessionKeys {
		if !sk.loaded() {
			return false
		}
	}
	return true
}

// MediaPlaylist is the variant-B playlist described in spec.md §3.
type MediaPlaylist struct {
	URI  string
	Hash string

	Type           PlaylistType
	EndList        bool
	TargetDuration float64
	Segments       []*Segment
}

// terminal reports whether this playlist will never produce more segments
// (§3 invariant 6, §4.4, §4.5).
func (m *MediaPlaylist) terminal() bool {
	return m.EndList || m.Type == PlaylistTypeVOD
}

// Playlist is either a MasterPlaylist or a MediaPlaylist, discriminated by
// Kind. Parser implementations return this type (§9: "tagged variants over
// discriminator fields").
type Playlist struct {
	Kind   Kind
	Master *MasterPlaylist
	Media  *MediaPlaylist
}

// URI returns the playlist's own URI regardless of kind.
func (p Playlist) URI() string {
	if p.Kind == KindMaster {
		return p.Master.URI
	}
	return p.Media.URI
}

// Hash returns the playlist's content hash regardless of kind.
func (p Playlist) Hash() string {
	if p.Kind == KindMaster {
		return p.Master.Hash
	}
	return p.Media.Hash
}
