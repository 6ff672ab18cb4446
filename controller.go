package hlswalk

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// walkState is the lifecycle of a Walker (spec.md §4.8).
type walkState int

const (
	stateInitialized walkState = iota
	stateReading
	stateEnded
	stateClosed
)

// Walker is C8, the walk controller: the single goroutine that owns every
// piece of shared state (caches, emit-gate bookkeeping, pending registry)
// and the only goroutine allowed to mutate any of it (spec.md §5). Every
// other component in this package is a plain function hung off *Walker;
// none of them are safe to call from outside msgCh's delivery loop.
type Walker struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted

	rootURI string
	state   walkState

	pending *pendingRegistry

	masters        map[string]*MasterPlaylist
	medias         map[string]*MediaPlaylist
	masterSelected map[string][]string

	masterEmitted  map[string]string
	segmentEmitted map[string]map[string]bool
	segmentQueued  map[string]map[string]bool

	// mediaMaster and pendingEmits together enforce spec.md §5's ordering
	// guarantee that a master playlist is emitted before any variant or
	// rendition media playlist discovered through it, even though the
	// master's own session-data/key gate and a variant's playlist fetch
	// race independently through fetchAsync (see gate.go's
	// emitGatedByMaster).
	mediaMaster  map[string]string
	pendingEmits map[string][]func()

	msgCh  chan func()
	events chan Event

	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs a Walker rooted at rootURI. Nothing happens until Events
// is first called (spec.md §4.8: "transitions to reading on the first
// downstream read"); calling Events is this package's read, since a Go
// consumer drives a Walker by ranging over the channel it returns rather
// than by an explicit pull method.
func New(rootURI string, opts Options) *Walker {
	opts.validate()
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Walker{
		opts:           opts,
		ctx:            ctx,
		cancel:         cancel,
		sem:            semaphore.NewWeighted(int64(opts.MaxConcurrentFetches)),
		rootURI:        rootURI,
		state:          stateInitialized,
		pending:        newPendingRegistry(),
		masters:        make(map[string]*MasterPlaylist),
		medias:         make(map[string]*MediaPlaylist),
		masterSelected: make(map[string][]string),
		masterEmitted:  make(map[string]string),
		segmentEmitted: make(map[string]map[string]bool),
		segmentQueued:  make(map[string]map[string]bool),
		mediaMaster:    make(map[string]string),
		pendingEmits:   make(map[string][]func()),
		msgCh:          make(chan func(), 64),
		events:         make(chan Event, opts.EventBufferSize),
	}
}

// Events returns the Walker's event stream, starting the walk on first
// call. The channel is closed once the walk reaches state closed.
func (w *Walker) Events() <-chan Event {
	w.startOnce.Do(func() {
		w.state = stateReading
		w.opts.Logger.Info("walk started", zap.String("uri", w.rootURI))
		go w.run()
		w.msgCh <- func() { w.fetchPlaylist(w.rootURI) }
	})
	return w.events
}

// Close tears the walk down early, regardless of its current state. It is
// safe to call more than once and safe to call whether or not Events has
// been called yet; the actual teardown always runs on the controller
// goroutine, triggered by context cancellation, never on the caller's.
func (w *Walker) Close() {
	w.closeOnce.Do(func() {
		w.cancel()
	})
}

// run is the controller's single goroutine: every closure arriving on
// msgCh is a message in the sense of spec.md §9's re-architecture hint
// (StartFetch/FetchDone/Tick/ConsumerClose), and all of them execute here,
// serialized, so nothing downstream ever needs a lock. Context
// cancellation — whether from Close or from finalizeClose's own call to
// cancel — is how the loop (and the walk) ends.
func (w *Walker) run() {
	for {
		select {
		case fn := <-w.msgCh:
			fn()
		case <-w.ctx.Done():
			w.finalizeClose()
			return
		}
	}
}

// postTick is how a fired refresh timer hands control back to the
// controller goroutine (spec.md §4.4). It always removes the timer's token
// from the pending registry, even if the controller has moved past
// `reading` by the time it runs — otherwise pendingRegistry.consumed()
// would never observe an empty timer set and the walk would never close.
func (w *Walker) postTick(token uuid.UUID, uri string) {
	w.msgCh <- func() {
		w.pending.cancel(token)
		defer w.maybeClose()
		if w.state != stateReading {
			return
		}
		w.fetchPlaylist(uri)
	}
}

// fetchPlaylist issues a primary playlist fetch: root, a selected variant,
// or a selected rendition all funnel through here (spec.md §4.2, §4.5).
func (w *Walker) fetchPlaylist(uri string) {
	w.fetchAsync(uri, LoadOptions{RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("playlist").Inc()
			w.opts.Logger.Error("fetch playlist", zap.String("uri", uri), zap.Error(err))
			w.emitError(&LoaderError{URI: uri, Err: err})
			return
		}
		// A fetch started while reading may land after the walk has
		// moved on; updateMaster/updateMedia assume state == reading,
		// so anything else must be a harmless no-op (spec.md §5,
		// "callbacks ... must be idempotent"). fetchAsync rechecks the
		// ended -> closed transition after this callback returns.
		if w.state != stateReading {
			return
		}
		pl, perr := w.opts.Parser.Parse(res.Data, uri)
		if perr != nil {
			fetchErrors.WithLabelValues("playlist").Inc()
			w.opts.Logger.Error("parse playlist", zap.String("uri", uri), zap.Error(perr))
			w.emitError(&ParseError{URI: uri, Err: perr})
			return
		}
		hash := hashPlaylist(res.Data)
		switch pl.Kind {
		case KindMaster:
			pl.Master.URI = uri
			pl.Master.Hash = hash
			w.updateMaster(pl.Master)
		case KindMedia:
			pl.Media.URI = uri
			pl.Media.Hash = hash
			w.updateMedia(pl.Media)
		}
	})
}

// fetchMediaPlaylist is fetchPlaylist under the name the differ uses when
// loading a variant or rendition's media playlist for the first time.
func (w *Walker) fetchMediaPlaylist(uri string) {
	w.fetchPlaylist(uri)
}

// emit delivers e to the consumer, unless the walk has already closed. The
// ended state still emits: a media playlist can turn terminal while
// segment or key fetches it kicked off are still in flight, and those
// fetches' completions must still reach the consumer for spec.md §8's
// completeness invariant to hold. Only closed — reached once every such
// fetch has actually drained — suppresses further sends, since the events
// channel is closed at that point.
func (w *Walker) emit(e Event) {
	if w.state == stateClosed {
		return
	}
	w.events <- e
}

// maybeClose performs the ended -> closed transition once there is no
// outstanding work left at all (spec.md §3 invariant 5, §4.8). It is
// called after every state-changing event, not just from updateMedia,
// because a timer or fetch draining to zero can itself be the last piece
// of outstanding work.
func (w *Walker) maybeClose() {
	if w.state != stateEnded || !w.pending.consumed() {
		return
	}
	w.finalizeClose()
}

// finalizeClose performs the actual ended -> closed transition: every
// pending timer is stopped, the playlist caches are dropped, and the
// event channel is closed (spec.md §4.8, §5 "Cancellation").
func (w *Walker) finalizeClose() {
	if w.state == stateClosed {
		return
	}
	w.pending.cancelAll()
	w.masters = make(map[string]*MasterPlaylist)
	w.medias = make(map[string]*MediaPlaylist)
	w.mediaMaster = make(map[string]string)
	w.pendingEmits = make(map[string][]func())
	w.state = stateClosed
	w.opts.Logger.Info("walk closed", zap.String("uri", w.rootURI))
	close(w.events)
	w.cancel()
}
