package hlswalk

import (
	"testing"
	"time"
)

// TestScheduleMediaRefreshUnchangedUsesHalfTargetDuration and
// TestScheduleMediaRefreshChangedUsesFullTargetDuration cover spec.md §4.4's
// live-refresh cadence split (scenario 2 in §8), which controller_test.go's
// VOD-only fixtures never exercise.

func TestScheduleMediaRefreshUnchangedUsesHalfTargetDuration(t *testing.T) {
	const uri = "live.m3u8"
	loader := newFakeLoader(map[string][]byte{uri: []byte("live")})
	parser := &fakeParser{byContent: map[string]Playlist{
		"live": {Kind: KindMedia, Media: &MediaPlaylist{Type: PlaylistTypeLiveSliding, TargetDuration: 0.2}},
	}}
	w := newTestWalker(t, loader, parser)
	go func() {
		for range w.events {
		}
	}()

	m := &MediaPlaylist{URI: uri, Type: PlaylistTypeLiveSliding, TargetDuration: 0.2}

	start := time.Now()
	w.msgCh <- func() { w.scheduleMediaRefresh(uri, m, true) }
	waitForLoaderCall(t, loader, uri, 1, 2*time.Second)
	elapsed := time.Since(start)

	if elapsed < 60*time.Millisecond {
		t.Fatalf("unchanged refresh fired too early for a 0.5x%v target duration: %v", m.TargetDuration, elapsed)
	}
	if elapsed > 600*time.Millisecond {
		t.Fatalf("unchanged refresh fired too late for a 0.5x%v target duration: %v", m.TargetDuration, elapsed)
	}
}

func TestScheduleMediaRefreshChangedUsesFullTargetDuration(t *testing.T) {
	const uri = "live.m3u8"
	loader := newFakeLoader(map[string][]byte{uri: []byte("live")})
	parser := &fakeParser{byContent: map[string]Playlist{
		"live": {Kind: KindMedia, Media: &MediaPlaylist{Type: PlaylistTypeLiveSliding, TargetDuration: 0.2}},
	}}
	w := newTestWalker(t, loader, parser)
	go func() {
		for range w.events {
		}
	}()

	m := &MediaPlaylist{URI: uri, Type: PlaylistTypeLiveSliding, TargetDuration: 0.2}

	start := time.Now()
	w.msgCh <- func() { w.scheduleMediaRefresh(uri, m, false) }
	waitForLoaderCall(t, loader, uri, 1, 2*time.Second)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Fatalf("changed-but-still-live refresh fired too early for a %v target duration: %v", m.TargetDuration, elapsed)
	}
	if elapsed > 1200*time.Millisecond {
		t.Fatalf("changed-but-still-live refresh fired too late for a %v target duration: %v", m.TargetDuration, elapsed)
	}
}

func TestScheduleMediaRefreshNeverReschedulesTerminalPlaylist(t *testing.T) {
	const uri = "vod.m3u8"
	loader := newFakeLoader(map[string][]byte{uri: []byte("vod")})
	w := newTestWalker(t, loader, &fakeParser{byContent: map[string]Playlist{}})

	m := &MediaPlaylist{URI: uri, Type: PlaylistTypeVOD, EndList: true, TargetDuration: 0.01}
	w.msgCh <- func() { w.scheduleMediaRefresh(uri, m, false) }
	<-drainOne(t, w)

	time.Sleep(100 * time.Millisecond)
	if n := loader.callCount(uri); n != 0 {
		t.Fatalf("expected a terminal media playlist never to be rescheduled, got %d fetches", n)
	}
}

func waitForLoaderCall(t *testing.T, loader *fakeLoader, uri string, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if loader.callCount(uri) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d call(s) to %s, got %d", want, uri, loader.callCount(uri))
}
