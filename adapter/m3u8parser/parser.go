// Package m3u8parser is the default hlswalk.Parser, built on grafov/m3u8.
package m3u8parser

import (
	"bytes"
	"strings"

	"github.com/grafov/m3u8"

	"hlswalk"
)

// Parser implements hlswalk.Parser. The zero value is ready to use.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser { return &Parser{} }

// Parse decodes raw into an hlswalk.Playlist. grafov/m3u8 has no concept of
// EXT-X-SESSION-DATA or EXT-X-SESSION-KEY, so those two tags are recovered
// by a small line scan over raw rather than through the library.
func (p *Parser) Parse(raw []byte, uri string) (hlswalk.Playlist, error) {
	decoded, listType, err := m3u8.DecodeFrom(bytes.NewReader(raw), true)
	if err != nil {
		return hlswalk.Playlist{}, err
	}

	switch listType {
	case m3u8.MASTER:
		mp := decoded.(*m3u8.MasterPlaylist)
		master := &hlswalk.MasterPlaylist{
			URI:         uri,
			Variants:    convertVariants(mp.Variants),
			Renditions:  convertRenditions(mp.Variants),
			SessionData: scanSessionData(raw),
			SessionKeys: scanSessionKeys(raw),
		}
		return hlswalk.Playlist{Kind: hlswalk.KindMaster, Master: master}, nil
	default:
		media := decoded.(*m3u8.MediaPlaylist)
		return hlswalk.Playlist{Kind: hlswalk.KindMedia, Media: convertMedia(media, uri)}, nil
	}
}

func convertVariants(vs []*m3u8.Variant) []hlswalk.Variant {
	out := make([]hlswalk.Variant, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			continue
		}
		out = append(out, hlswalk.Variant{
			URI:        v.URI,
			Bandwidth:  int(v.Bandwidth),
			Codecs:     v.Codecs,
			Resolution: v.Resolution,
		})
	}
	return out
}

// convertRenditions flattens the EXT-X-MEDIA alternatives that grafov/m3u8
// attaches to every variant that references a group, deduplicating by
// group+type+name+uri since the same alternative is repeated on each
// variant that shares its group (spec.md §3, "Rendition").
func convertRenditions(vs []*m3u8.Variant) map[hlswalk.MediaType][]hlswalk.Rendition {
	seen := make(map[string]bool)
	out := make(map[hlswalk.MediaType][]hlswalk.Rendition)
	for _, v := range vs {
		if v == nil {
			continue
		}
		for _, alt := range v.Alternatives {
			if alt == nil {
				continue
			}
			mt, ok := mediaTypeOf(alt.Type)
			if !ok {
				continue
			}
			key := alt.Type + "\x00" + alt.GroupId + "\x00" + alt.Name + "\x00" + alt.URI
			if seen[key] {
				continue
			}
			seen[key] = true
			out[mt] = append(out[mt], hlswalk.Rendition{
				Type:     mt,
				GroupID:  alt.GroupId,
				Name:     alt.Name,
				URI:      alt.URI,
				Language: alt.Language,
			})
		}
	}
	return out
}

func mediaTypeOf(tag string) (hlswalk.MediaType, bool) {
	switch strings.ToUpper(tag) {
	case "AUDIO":
		return hlswalk.MediaTypeAudio, true
	case "VIDEO":
		return hlswalk.MediaTypeVideo, true
	case "SUBTITLES":
		return hlswalk.MediaTypeSubtitles, true
	case "CLOSED-CAPTIONS":
		return hlswalk.MediaTypeClosedCaptions, true
	default:
		return 0, false
	}
}

func convertMedia(mp *m3u8.MediaPlaylist, uri string) *hlswalk.MediaPlaylist {
	out := &hlswalk.MediaPlaylist{
		URI:            uri,
		Type:           playlistTypeOf(mp),
		EndList:        mp.Closed,
		TargetDuration: mp.TargetDuration,
	}
	for _, seg := range mp.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		out.Segments = append(out.Segments, convertSegment(seg))
	}
	return out
}

func playlistTypeOf(mp *m3u8.MediaPlaylist) hlswalk.PlaylistType {
	switch mp.MediaType {
	case m3u8.VOD:
		return hlswalk.PlaylistTypeVOD
	case m3u8.EVENT:
		return hlswalk.PlaylistTypeEvent
	default:
		return hlswalk.PlaylistTypeLiveSliding
	}
}

func convertSegment(seg *m3u8.MediaSegment) *hlswalk.Segment {
	out := &hlswalk.Segment{
		URI:       seg.URI,
		Duration:  seg.Duration,
		Sequence:  int(seg.SeqId),
		ByteRange: byteRangeOf(seg.Limit, seg.Offset),
	}
	if seg.Key != nil && seg.Key.URI != "" {
		out.Key = &hlswalk.Key{URI: seg.Key.URI, Method: seg.Key.Method, IV: seg.Key.IV}
	}
	if seg.Map != nil && seg.Map.URI != "" {
		out.Map = &hlswalk.Map{URI: seg.Map.URI, ByteRange: byteRangeOf(seg.Map.Limit, seg.Map.Offset)}
	}
	return out
}

// byteRangeOf matches EXT-X-BYTERANGE's "length@offset" shape; a zero
// length means the tag was absent (spec.md §3, "ByteRange").
func byteRangeOf(limit, offset int64) *hlswalk.ByteRange {
	if limit == 0 {
		return nil
	}
	return &hlswalk.ByteRange{Offset: offset, Length: limit}
}

func scanSessionData(raw []byte) []*hlswalk.SessionDataEntry {
	var out []*hlswalk.SessionDataEntry
	for _, line := range splitLines(raw) {
		rest, ok := cutTagPrefix(line, "#EXT-X-SESSION-DATA:")
		if !ok {
			continue
		}
		attrs := parseAttributeList(rest)
		out = append(out, &hlswalk.SessionDataEntry{
			Key:   attrs["DATA-ID"],
			Value: attrs["VALUE"],
			URI:   attrs["URI"],
		})
	}
	return out
}

func scanSessionKeys(raw []byte) []*hlswalk.SessionKey {
	var out []*hlswalk.SessionKey
	for _, line := range splitLines(raw) {
		rest, ok := cutTagPrefix(line, "#EXT-X-SESSION-KEY:")
		if !ok {
			continue
		}
		attrs := parseAttributeList(rest)
		if attrs["URI"] == "" {
			continue
		}
		out = append(out, &hlswalk.SessionKey{
			URI:    attrs["URI"],
			Method: attrs["METHOD"],
			IV:     attrs["IV"],
		})
	}
	return out
}

func splitLines(raw []byte) []string {
	return strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
}

func cutTagPrefix(line, prefix string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimPrefix(line, prefix), true
}

// parseAttributeList parses a comma-separated ATTR=VALUE list, the
// attribute-list grammar shared by every HLS tag, respecting quoted values
// that may themselves contain commas.
func parseAttributeList(s string) map[string]string {
	out := make(map[string]string)
	var key, val strings.Builder
	inQuotes, parsingKey := false, true
	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			out[k] = val.String()
		}
		key.Reset()
		val.Reset()
		parsingKey = true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && c == '=' && parsingKey:
			parsingKey = false
		case !inQuotes && c == ',':
			flush()
		default:
			if parsingKey {
				key.WriteByte(c)
			} else {
				val.WriteByte(c)
			}
		}
	}
	flush()
	return out
}
