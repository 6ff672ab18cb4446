package hlswalk

import (
	"encoding/json"

	"go.uber.org/zap"
)

// fetchAsync issues a single load through the Loader, gated by the bounded
// worker-pool semaphore (§9 open question 4), and reports the result back
// to the walk controller's single goroutine as a closure on msgCh so every
// mutation of shared state happens serialized (spec.md §5). pending.incr()
// happens synchronously, before the goroutine is spawned, and decr()
// happens when the result closure runs — matching spec.md §4.3 exactly:
// "incremented before issuing any fetch and decremented in its callback".
func (w *Walker) fetchAsync(uri string, opts LoadOptions, onResult func(LoadResult, error)) {
	w.pending.incr()
	go func() {
		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			w.msgCh <- func() {
				w.pending.decr()
				onResult(LoadResult{}, err)
				w.maybeClose()
			}
			return
		}
		res, err := w.opts.Loader.Load(w.ctx, uri, opts)
		w.sem.Release(1)
		w.msgCh <- func() {
			w.pending.decr()
			onResult(res, err)
			// A fetch draining to zero can itself be the last piece of
			// outstanding work the ended -> closed transition is
			// waiting on (spec.md §3 invariant 5), so every completion
			// rechecks it, not just the ones the differ triggers.
			w.maybeClose()
		}
	}()
}

// C6 Subresource loader (spec.md §4.6). Four kinds of secondary fetch, all
// sharing the fetchAsync shape: issue, populate a slot on success, log and
// surface an Error event on failure (except session data, whose JSON parse
// failure is logged but does not propagate — spec.md §4.6 last bullet).

func (w *Walker) fetchSegmentData(seg *Segment, onDone func()) {
	w.opts.Logger.Debug("start download segment", zap.String("uri", seg.URI))
	w.fetchAsync(seg.URI, LoadOptions{RawResponse: w.opts.RawResponse, RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("segment").Inc()
			w.opts.Logger.Error("fetch segment", zap.String("uri", seg.URI), zap.Error(err))
			w.emitError(&LoaderError{URI: seg.URI, Err: err})
			return
		}
		seg.Data = applyByteRange(res.Data, seg.ByteRange, w.opts.RawResponse)
		seg.MimeType = res.MimeType
		w.opts.Logger.Debug("finish download segment", zap.String("uri", seg.URI))
		onDone()
	})
}

func (w *Walker) fetchMapData(m *Map, onDone func()) {
	w.fetchAsync(m.URI, LoadOptions{RawResponse: w.opts.RawResponse, RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("map").Inc()
			w.opts.Logger.Error("fetch map", zap.String("uri", m.URI), zap.Error(err))
			w.emitError(&LoaderError{URI: m.URI, Err: err})
			return
		}
		m.Data = applyByteRange(res.Data, m.ByteRange, w.opts.RawResponse)
		m.MimeType = res.MimeType
		onDone()
	})
}

func (w *Walker) fetchKeyData(k *Key, onDone func()) {
	w.fetchAsync(k.URI, LoadOptions{RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("key").Inc()
			w.opts.Logger.Error("fetch key", zap.String("uri", k.URI), zap.Error(err))
			w.emitError(&LoaderError{URI: k.URI, Err: err})
			return
		}
		k.Data = res.Data
		k.MimeType = res.MimeType
		onDone()
	})
}

func (w *Walker) fetchSessionKeyData(k *SessionKey, onDone func()) {
	w.fetchAsync(k.URI, LoadOptions{RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("key").Inc()
			w.opts.Logger.Error("fetch session key", zap.String("uri", k.URI), zap.Error(err))
			w.emitError(&LoaderError{URI: k.URI, Err: err})
			return
		}
		k.Data = res.Data
		k.MimeType = res.MimeType
		onDone()
	})
}

func (w *Walker) fetchSessionDataEntry(sd *SessionDataEntry, onDone func()) {
	w.fetchAsync(sd.URI, LoadOptions{RootPath: w.opts.RootPath}, func(res LoadResult, err error) {
		if err != nil {
			fetchErrors.WithLabelValues("sessiondata").Inc()
			w.opts.Logger.Error("fetch session data", zap.String("uri", sd.URI), zap.Error(err))
			w.emitError(&LoaderError{URI: sd.URI, Err: err})
			return
		}
		var parsed any
		if jsonErr := json.Unmarshal(res.Data, &parsed); jsonErr != nil {
			// Session-data JSON parse failures are logged, not surfaced as
			// an Error event; the entry stays unloaded, which blocks the
			// owning master playlist's emission (spec.md §4.6, §9 open
			// question 1 — this implementation keeps that behavior).
			w.opts.Logger.Warn("session data parse failed",
				zap.String("uri", sd.URI), zap.Error(jsonErr))
			return
		}
		sd.Data = parsed
		onDone()
	})
}

// applyByteRange implements the slot rule shared by segment data and init
// maps (spec.md §4.6): in rawResponse mode the full payload is kept;
// otherwise a byte range, if present, is sliced out with offset defaulting
// to 0 and length defaulting to "rest of buffer".
func applyByteRange(data []byte, br *ByteRange, rawResponse bool) []byte {
	if rawResponse || br == nil {
		return data
	}
	offset := br.Offset
	length := br.Length
	if offset < 0 || offset > int64(len(data)) {
		offset = 0
	}
	end := int64(len(data))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return data[offset:end]
}
