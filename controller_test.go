package hlswalk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeLoader resolves a fixed uri->bytes map and counts how many times each
// uri was fetched, mirroring the stub style the corpus uses for its
// external collaborators rather than a mocking library.
type fakeLoader struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
	holds map[string]chan struct{}
}

func newFakeLoader(data map[string][]byte) *fakeLoader {
	return &fakeLoader{data: data, calls: make(map[string]int)}
}

// holdUntil makes every future Load for uri block until the returned
// release func is called, letting a test force a specific fetch-completion
// order instead of relying on goroutine scheduling luck.
func (f *fakeLoader) holdUntil(uri string) (release func()) {
	f.mu.Lock()
	if f.holds == nil {
		f.holds = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	f.holds[uri] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeLoader) Load(ctx context.Context, uri string, opts LoadOptions) (LoadResult, error) {
	f.mu.Lock()
	f.calls[uri]++
	hold := f.holds[uri]
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[uri]
	if !ok {
		return LoadResult{}, fmt.Errorf("fakeLoader: no data for %s", uri)
	}
	return LoadResult{Data: d}, nil
}

func (f *fakeLoader) callCount(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

// fakeParser looks a Playlist up by the exact raw bytes fakeLoader handed
// back, so tests can drive the controller without a real m3u8 grammar.
type fakeParser struct {
	mu        sync.Mutex
	byContent map[string]Playlist
}

func (f *fakeParser) Parse(raw []byte, uri string) (Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, ok := f.byContent[string(raw)]
	if !ok {
		return Playlist{}, fmt.Errorf("fakeParser: no playlist for content %q", raw)
	}
	return pl, nil
}

func drainUntilClosed(t *testing.T, events <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-deadline:
			t.Fatalf("timed out waiting for walk to close, got %d events so far", len(got))
		}
	}
}

func TestWalkerVODTwoVariant(t *testing.T) {
	const rootURI, v1URI, v2URI = "root.m3u8", "v1.m3u8", "v2.m3u8"
	const seg1URI, seg2URI = "v1/seg0.ts", "v2/seg0.ts"

	loader := newFakeLoader(map[string][]byte{
		rootURI: []byte("root"),
		v1URI:   []byte("v1"),
		v2URI:   []byte("v2"),
		seg1URI: []byte("seg1-data"),
		seg2URI: []byte("seg2-data"),
	})
	parser := &fakeParser{byContent: map[string]Playlist{
		"root": {Kind: KindMaster, Master: &MasterPlaylist{
			Variants: []Variant{{URI: v1URI}, {URI: v2URI}},
		}},
		"v1": {Kind: KindMedia, Media: &MediaPlaylist{
			Type: PlaylistTypeVOD, EndList: true, TargetDuration: 6,
			Segments: []*Segment{{URI: seg1URI, Duration: 6}},
		}},
		"v2": {Kind: KindMedia, Media: &MediaPlaylist{
			Type: PlaylistTypeVOD, EndList: true, TargetDuration: 6,
			Segments: []*Segment{{URI: seg2URI, Duration: 6}},
		}},
	}}

	w := New(rootURI, Options{Loader: loader, Parser: parser, MasterPlaylistTimeout: 20 * time.Millisecond})
	events := drainUntilClosed(t, w.Events(), 5*time.Second)

	var masters, medias, segments, errs int
	for _, e := range events {
		switch e.Kind {
		case EventMaster:
			masters++
		case EventMedia:
			medias++
		case EventSegment:
			segments++
		case EventError:
			errs++
			t.Errorf("unexpected error event: %v", e.Err)
		}
	}
	if errs == 0 {
		if masters != 1 {
			t.Errorf("expected 1 master event, got %d", masters)
		}
		if medias != 2 {
			t.Errorf("expected 2 media events, got %d", medias)
		}
		if segments != 2 {
			t.Errorf("expected 2 segment events, got %d", segments)
		}
	}
}

func TestWalkerSurfacesLoaderErrorWithoutStalling(t *testing.T) {
	const rootURI, v1URI, v2URI = "root.m3u8", "v1.m3u8", "v2.m3u8"

	loader := newFakeLoader(map[string][]byte{
		rootURI: []byte("root"),
		v2URI:   []byte("v2"),
		// v1URI deliberately missing: its fetch will error.
	})
	parser := &fakeParser{byContent: map[string]Playlist{
		"root": {Kind: KindMaster, Master: &MasterPlaylist{
			Variants: []Variant{{URI: v1URI}, {URI: v2URI}},
		}},
		"v2": {Kind: KindMedia, Media: &MediaPlaylist{
			Type: PlaylistTypeVOD, EndList: true, TargetDuration: 6,
		}},
	}}

	w := New(rootURI, Options{Loader: loader, Parser: parser, MasterPlaylistTimeout: 20 * time.Millisecond})

	var sawErr bool
	deadline := time.After(2 * time.Second)
	for !sawErr {
		select {
		case e, ok := <-w.Events():
			if !ok {
				t.Fatal("walk closed before surfacing the loader error")
			}
			if e.Kind == EventError {
				sawErr = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for an error event")
		}
	}
	w.Close()
}

func TestWalkerUnchangedMasterDoesNotRefetchMedia(t *testing.T) {
	const rootURI, v1URI = "root.m3u8", "v1.m3u8"
	const segURI = "v1/seg0.ts"

	loader := newFakeLoader(map[string][]byte{
		rootURI: []byte("root"),
		v1URI:   []byte("v1"),
		segURI:  []byte("seg-data"),
	})
	parser := &fakeParser{byContent: map[string]Playlist{
		"root": {Kind: KindMaster, Master: &MasterPlaylist{Variants: []Variant{{URI: v1URI}}}},
		"v1": {Kind: KindMedia, Media: &MediaPlaylist{
			Type: PlaylistTypeVOD, EndList: true, TargetDuration: 6,
			Segments: []*Segment{{URI: segURI, Duration: 6}},
		}},
	}}

	w := New(rootURI, Options{Loader: loader, Parser: parser, MasterPlaylistTimeout: 15 * time.Millisecond})
	drainUntilClosed(t, w.Events(), 5*time.Second)

	// The master is unchanged across every refetch until the walk ends, so
	// v1's media playlist and segment must each be fetched exactly once
	// (spec.md §8, hash idempotence) no matter how many times the master
	// refresh timer fires in the interim.
	if n := loader.callCount(v1URI); n != 1 {
		t.Errorf("expected v1 playlist fetched exactly once, got %d", n)
	}
	if n := loader.callCount(segURI); n != 1 {
		t.Errorf("expected segment fetched exactly once, got %d", n)
	}
	if n := loader.callCount(rootURI); n < 1 {
		t.Errorf("expected root fetched at least once, got %d", n)
	}
}
