package hlswalk

import "testing"

func TestHashPlaylistStableAndSensitive(t *testing.T) {
	a := hashPlaylist([]byte("#EXTM3U\n#EXT-X-VERSION:3\n"))
	b := hashPlaylist([]byte("#EXTM3U\n#EXT-X-VERSION:3\n"))
	if a != b {
		t.Fatalf("hash not stable for identical input: %q vs %q", a, b)
	}
	c := hashPlaylist([]byte("#EXTM3U\n#EXT-X-VERSION:4\n"))
	if a == c {
		t.Fatalf("hash did not change for different input")
	}
}
