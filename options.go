package hlswalk

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoadOptions mirrors the loader-specific knobs in spec.md §6's loader
// contract: `load(url, {noCache?, readAsBuffer?, rawResponse?}, cb)`.
type LoadOptions struct {
	NoCache      bool
	ReadAsBuffer bool
	RawResponse  bool

	// RootPath carries Options.RootPath through to the Loader on every
	// call, per spec.md §6's `rootPath` option ("forwarded to the
	// injected loader").
	RootPath string
}

// LoadResult is the payload a Loader hands back once a fetch completes.
type LoadResult struct {
	Data     []byte
	MimeType string
}

// Loader resolves a URL (or filesystem path) to a byte payload plus mime
// type. It is the "opaque fetcher" external collaborator from spec.md §1;
// only this contract is in scope here, not any particular transport.
// Implementations must be safe to call concurrently (spec.md §5, "Shared
// resources").
type Loader interface {
	Load(ctx context.Context, url string, opts LoadOptions) (LoadResult, error)
}

// Parser converts raw playlist text into a structured Playlist. It is the
// "pure function" external collaborator from spec.md §1; only this
// contract is in scope here, not any particular playlist grammar.
type Parser interface {
	Parse(raw []byte, uri string) (Playlist, error)
}

// VariantSelector is invoked before loading the media playlists referenced
// by a freshly-fetched master playlist. It returns the indices of the
// variants to load; a nil return selects all of them (spec.md §6,
// `variants(variants, acceptSelection)`).
type VariantSelector func(variants []Variant) []int

// RenditionSelector is the analogous hook for alternate renditions
// (spec.md §6, `renditions(renditions, acceptSelection)`).
type RenditionSelector func(renditions []Rendition) []int

func selectAll(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Options configures a Walker.
type Options struct {
	// Loader is required. Resolves URLs to byte payloads.
	Loader Loader

	// Parser is required. Converts raw playlist bytes into Playlist values.
	Parser Parser

	// RootPath is the base directory for relative filesystem URLs
	// (spec.md §6). It is not interpreted by the walk engine itself —
	// every fetch forwards it to the Loader via LoadOptions.RootPath, and
	// a filesystem-backed Loader (e.g. adapter/httploader) is expected to
	// resolve relative paths against it, defaulting to the process
	// working directory when empty.
	RootPath string

	// RawResponse, if true, delivers segment data uninterpreted; otherwise
	// byte-ranges are applied (spec.md §6).
	RawResponse bool

	// MasterPlaylistTimeout is the delay between unchanged-master refetches
	// and between refetches of a master that still needs reloading
	// (spec.md §4.4). Default: 30s.
	MasterPlaylistTimeout time.Duration

	// MaxConcurrentFetches bounds concurrent subresource fetches
	// (spec.md §9 open question 4). Default: 16.
	MaxConcurrentFetches int

	// EventBufferSize sizes the output event channel. Default: 0
	// (unbuffered — spec.md §5 backpressure is intentionally not
	// implemented beyond whatever buffering this provides).
	EventBufferSize int

	// Variants filters which variants of a master playlist get their media
	// playlists loaded. Defaults to loading all of them.
	Variants VariantSelector

	// Renditions filters which alternate renditions get their media
	// playlists loaded. Defaults to loading all of them.
	Renditions RenditionSelector

	// Logger receives structured diagnostics. Defaults to a production
	// zap.Logger.
	Logger *zap.Logger
}

func (o *Options) setDefaults() {
	if o.MasterPlaylistTimeout == 0 {
		o.MasterPlaylistTimeout = 30 * time.Second
	}
	if o.MaxConcurrentFetches == 0 {
		o.MaxConcurrentFetches = 16
	}
	if o.Variants == nil {
		o.Variants = func(v []Variant) []int { return selectAll(len(v)) }
	}
	if o.Renditions == nil {
		o.Renditions = func(r []Rendition) []int { return selectAll(len(r)) }
	}
	if o.Logger == nil {
		o.Logger = newDefaultLogger()
	}
}

func (o *Options) validate() {
	if o.Loader == nil {
		panic("hlswalk: Loader is required")
	}
	if o.Parser == nil {
		panic("hlswalk: Parser is required")
	}
}
