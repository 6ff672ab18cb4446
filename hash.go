package hlswalk

import "github.com/cespare/xxhash/v2"

// hashPlaylist produces a fixed-width hex digest over raw playlist bytes
// (C1 Hasher, spec.md §4.1). Collision resistance is not security-critical;
// xxhash is chosen for speed and a stable, well-spread distribution, and is
// byte-identical across replays of the same input.
func hashPlaylist(raw []byte) string {
	return formatHash(xxhash.Sum64(raw))
}

func formatHash(h uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}
