package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"scrubthumbs/internal/metrics"
	"scrubthumbs/internal/thumbcache"
)

// Consumer receives the outcome of a session. Callbacks run on the
// manager's dispatch queue, one at a time, never on the worker.
type Consumer interface {
	OnProgress(fraction float64)
	// OnReady is called once per successful completion, whether served
	// from the cache or freshly generated.
	OnReady()
	OnFailed(err error)
}

// Session is one attempt to obtain thumbnails for a (media file, pixel
// width) pair. Its state is mutated only on the manager's worker queue and
// may be read from any goroutine.
type Session struct {
	id          string
	key         thumbcache.Key
	path        string
	fingerprint thumbcache.Fingerprint
	rotation    int
	duration    float64
	createdAt   time.Time

	mgr       *Manager
	ctx       context.Context
	cancelCtx context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	mu         sync.RWMutex
	state      State
	err        error
	progress   float64
	delivered  int
	expected   int
	records    []thumbcache.Record // display sequence, rotation applied
	raw        []thumbcache.Record // as extracted, persisted on completion
	consumers  []Consumer
	finishedAt time.Time
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Width    int       `json:"width"`
	State    string    `json:"state"`
	Progress float64   `json:"progress"`
	Count    int       `json:"count"`
	Expected int       `json:"expected"`
	Rotation int       `json:"rotation"`
	Duration float64   `json:"duration"`
	Error    string    `json:"error,omitempty"`
	Created  time.Time `json:"created"`
}

func newSession(m *Manager, key thumbcache.Key, path string, fp thumbcache.Fingerprint, rotation int, duration float64) *Session {
	ctx, cancel := context.WithCancel(m.ctx)
	return &Session{
		id:          uuid.NewString(),
		key:         key,
		path:        path,
		fingerprint: fp,
		rotation:    rotation,
		duration:    duration,
		createdAt:   time.Now(),
		mgr:         m,
		ctx:         ctx,
		cancelCtx:   cancel,
		done:        make(chan struct{}),
		state:       CheckingCache,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Key returns the cache key the session generates for.
func (s *Session) Key() thumbcache.Key { return s.key }

// Path returns the source media path.
func (s *Session) Path() string { return s.path }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Progress returns the completed fraction in [0, 1].
func (s *Session) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Err returns the terminal error of a Failed or Cancelled session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Len returns the number of display-ready thumbnails.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of the display sequence.
func (s *Session) Records() []thumbcache.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]thumbcache.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the thumbnail to show at querySeconds. Thumbnails become
// available as batches arrive, before the session completes.
func (s *Session) Lookup(querySeconds float64) (thumbcache.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return thumbcache.NearestAtOrBefore(s.records, querySeconds)
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:       s.id,
		Path:     s.path,
		Width:    s.key.PixelWidth,
		State:    s.state.String(),
		Progress: s.progress,
		Count:    len(s.records),
		Expected: s.expected,
		Rotation: s.rotation,
		Duration: s.duration,
		Created:  s.createdAt,
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is terminal or ctx ends, and returns the
// session's terminal error.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops generation. Batches arriving afterwards are ignored, the
// extractor is killed and nothing is written to the cache. Cancelling a
// terminal session has no effect.
func (s *Session) Cancel() {
	if s.State().Terminal() {
		return
	}
	if s.cancelled.CompareAndSwap(false, true) {
		log.Debug("Cancelling session %s for %s", s.id, s.key)
		s.cancelCtx()
	}
}

func (s *Session) isCancelled() bool {
	return s.cancelled.Load()
}

// attach registers c for notifications. A consumer joining late is told
// the current progress, or the outcome if the session already finished.
func (s *Session) attach(c Consumer) {
	if c == nil {
		return
	}
	s.mu.Lock()
	state, progress, err := s.state, s.progress, s.err
	if !state.Terminal() {
		s.consumers = append(s.consumers, c)
	}
	s.mu.Unlock()

	switch {
	case state.Terminal():
		s.mgr.dispatch.Submit(func() { deliverOutcome(c, state, err) })
	case progress > 0:
		s.mgr.dispatch.Submit(func() { c.OnProgress(progress) })
	}
}

func (s *Session) notify(fn func(Consumer)) {
	s.mu.RLock()
	consumers := append([]Consumer(nil), s.consumers...)
	s.mu.RUnlock()
	if len(consumers) == 0 {
		return
	}
	s.mgr.dispatch.Submit(func() {
		for _, c := range consumers {
			fn(c)
		}
	})
}

func deliverOutcome(c Consumer, state State, err error) {
	if state.Ready() {
		c.OnProgress(1)
		c.OnReady()
		return
	}
	c.OnFailed(err)
}

// checkCache runs on the worker. A valid cache file with enough records
// completes the session; anything else falls through to generation.
func (s *Session) checkCache() {
	if s.isCancelled() {
		s.finish(Cancelled, ErrCancelled)
		return
	}

	store := s.mgr.store
	if store.IsValid(s.key, s.fingerprint) {
		file, err := store.Read(s.key)
		switch {
		case err == nil && len(file.Records) >= s.mgr.opts.MinPerFile:
			display := s.rotateAll(file.Records)
			s.mu.Lock()
			s.records = display
			s.delivered = len(display)
			s.expected = len(display)
			s.progress = 1
			s.mu.Unlock()
			log.Debug("Loaded %d thumbnails for %s from cache", len(display), s.key)
			s.finish(HitComplete, nil)
			return
		case err == nil:
			log.Info("Cache for %s holds only %d thumbnails (minimum %d), regenerating",
				s.key, len(file.Records), s.mgr.opts.MinPerFile)
		case errors.Is(err, thumbcache.ErrCorruptCache):
			log.Warn("Discarded corrupt cache for %s: %v", s.key, err)
		default:
			log.Warn("Failed to read cache for %s: %v", s.key, err)
		}
	}

	if s.isCancelled() {
		s.finish(Cancelled, ErrCancelled)
		return
	}

	s.mu.Lock()
	s.state = Generating
	s.mu.Unlock()
	log.Info("Generating thumbnails for %s at %dpx", s.path, s.key.PixelWidth)

	go s.extract()
}

// extract runs on its own goroutine and hands every batch and the final
// result to the worker, preserving arrival order.
func (s *Session) extract() {
	err := s.mgr.extractor.Extract(s.ctx, s.path, s.key.PixelWidth, s.duration, func(frames []thumbcache.Record, delivered, expected int) {
		s.mgr.onWorker(func() { s.applyBatch(frames, delivered, expected) })
	})
	s.mgr.onWorker(func() { s.complete(err) })
}

func (s *Session) applyBatch(frames []thumbcache.Record, delivered, expected int) {
	if s.isCancelled() || s.State().Terminal() {
		log.Debug("Dropping batch of %d thumbnails for %s", len(frames), s.key)
		return
	}

	display := s.rotateAll(frames)

	s.mu.Lock()
	s.raw = append(s.raw, frames...)
	s.records = append(s.records, display...)
	s.delivered = max(delivered, len(s.records))
	// The expected total may change between batches; the latest value wins.
	s.expected = max(expected, s.delivered)
	s.progress = fraction(s.delivered, s.expected)
	progress := s.progress
	s.mu.Unlock()

	s.notify(func(c Consumer) { c.OnProgress(progress) })
}

// complete runs on the worker once the extractor has returned.
func (s *Session) complete(extractErr error) {
	if s.isCancelled() {
		s.discard()
		s.finish(Cancelled, ErrCancelled)
		return
	}
	if extractErr != nil {
		s.discard()
		s.finish(Failed, fmt.Errorf("%w: %v", ErrExtractionFailed, extractErr))
		return
	}

	s.persist()

	s.mu.Lock()
	s.raw = nil
	s.progress = 1
	s.mu.Unlock()
	s.finish(Completed, nil)
}

// persist writes the raw sequence. Failures never fail the session: the
// thumbnails stay usable, they are just not cached.
func (s *Session) persist() {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()

	if len(raw) == 0 {
		log.Info("Nothing to write for %s", s.key)
		return
	}

	store := s.mgr.store
	live, err := store.FingerprintOf(s.path)
	if err != nil {
		log.Warn("Source %s vanished during generation, not caching: %v", s.path, err)
		return
	}
	if live != s.fingerprint {
		log.Info("Source %s changed during generation (%s -> %s), not caching", s.path, s.fingerprint, live)
		return
	}

	if err := store.Write(s.key, s.fingerprint, raw); err != nil {
		if errors.Is(err, thumbcache.ErrQuotaWriteDenied) {
			return
		}
		log.Warn("Failed to cache thumbnails for %s: %v", s.key, err)
	}
}

func (s *Session) discard() {
	s.mu.Lock()
	s.records = nil
	s.raw = nil
	s.mu.Unlock()
}

// finish moves the session to a terminal state exactly once.
func (s *Session) finish(state State, err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.err = err
	s.finishedAt = time.Now()
	consumers := s.consumers
	s.consumers = nil
	s.mu.Unlock()

	s.mgr.retire(s)
	close(s.done)
	s.cancelCtx()

	metrics.SessionOutcomesTotal.WithLabelValues(state.outcome()).Inc()
	if err != nil && !errors.Is(err, ErrCancelled) {
		log.Warn("Session %s for %s failed: %v", s.id, s.path, err)
	} else {
		log.Debug("Session %s for %s finished: %s", s.id, s.key, state)
	}

	if len(consumers) > 0 {
		s.mgr.dispatch.Submit(func() {
			for _, c := range consumers {
				deliverOutcome(c, state, err)
			}
		})
	}
}

func (s *Session) finishedBefore(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Terminal() && s.finishedAt.Before(t)
}

// rotateAll returns display copies of records with the session rotation
// applied. Each record passes through here once.
func (s *Session) rotateAll(records []thumbcache.Record) []thumbcache.Record {
	out := make([]thumbcache.Record, len(records))
	for i, r := range records {
		out[i] = s.rotate(r)
	}
	return out
}

func (s *Session) rotate(r thumbcache.Record) thumbcache.Record {
	if s.rotation == 0 || s.mgr.rotator == nil {
		return r
	}
	start := time.Now()
	payload, err := s.mgr.rotator.Rotate(r.Image, s.rotation)
	metrics.RotationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("Failed to rotate thumbnail at %.3fs for %s: %v", r.Timestamp, s.key, err)
		return r
	}
	out := thumbcache.Record{Timestamp: r.Timestamp, Image: payload, Width: r.Width, Height: r.Height}
	if s.rotation == 90 || s.rotation == 270 {
		out.Width, out.Height = r.Height, r.Width
	}
	return out
}

func fraction(delivered, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	f := float64(delivered) / float64(expected)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
