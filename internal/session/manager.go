package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/media"
	"scrubthumbs/internal/metrics"
	"scrubthumbs/internal/thumbcache"
	"scrubthumbs/internal/workers"
)

var log = logging.Subsystem("session")

// Defaults for Options.
const (
	DefaultFixedLength    = 240
	DefaultRawSizePercent = 10
	DefaultMinPerFile     = 5
)

// Store is the subset of *thumbcache.Store a session needs.
type Store interface {
	FingerprintOf(sourcePath string) (thumbcache.Fingerprint, error)
	IsValid(key thumbcache.Key, fp thumbcache.Fingerprint) bool
	Read(key thumbcache.Key) (*thumbcache.CacheFile, error)
	Write(key thumbcache.Key, fp thumbcache.Fingerprint, records []thumbcache.Record) error
}

// Prober reports the coded dimensions, duration and display rotation of a
// video.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.VideoInfo, error)
}

// Extractor produces unrotated frames of path scaled to width, spread over
// the probed duration in seconds. It calls onBatch for each group of frames
// in order and returns when extraction ends; it must return promptly once
// ctx is cancelled.
type Extractor interface {
	Extract(ctx context.Context, path string, width int, duration float64, onBatch func(frames []thumbcache.Record, delivered, expected int)) error
}

// Rotator turns an image payload clockwise by degrees.
type Rotator interface {
	Rotate(payload []byte, degrees int) ([]byte, error)
}

// Options controls thumbnail sizing and cache acceptance.
type Options struct {
	SizeMode       SizeMode
	FixedLength    int
	RawSizePercent float64
	// MinPerFile is the smallest cached record count served as a hit.
	MinPerFile int
}

// DefaultOptions returns the standard sizing: longer axis of 240px and at
// least 5 cached thumbnails.
func DefaultOptions() Options {
	return Options{
		SizeMode:       SizeFixed,
		FixedLength:    DefaultFixedLength,
		RawSizePercent: DefaultRawSizePercent,
		MinPerFile:     DefaultMinPerFile,
	}
}

// Manager creates sessions and runs them on a single worker.
type Manager struct {
	store     Store
	prober    Prober
	extractor Extractor
	rotator   Rotator
	opts      Options

	ctx      context.Context
	stop     context.CancelFunc
	worker   *workers.Queue
	dispatch *workers.Queue

	mu       sync.Mutex
	closed   bool
	inflight map[thumbcache.Key]*Session
	sessions map[string]*Session
}

// NewManager starts a Manager. rotator may be nil, in which case
// thumbnails are displayed as extracted.
func NewManager(store Store, prober Prober, extractor Extractor, rotator Rotator, opts Options) *Manager {
	if opts.SizeMode == "" {
		opts.SizeMode = SizeFixed
	}
	if opts.FixedLength <= 0 {
		opts.FixedLength = DefaultFixedLength
	}
	if opts.MinPerFile <= 0 {
		opts.MinPerFile = DefaultMinPerFile
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		prober:    prober,
		extractor: extractor,
		rotator:   rotator,
		opts:      opts,
		ctx:       ctx,
		stop:      stop,
		worker:    workers.NewQueue("cache-worker"),
		dispatch:  workers.NewQueue("consumer-dispatch"),
		inflight:  make(map[thumbcache.Key]*Session),
		sessions:  make(map[string]*Session),
	}
}

// Start requests thumbnails for the media file at path. If a session for
// the same file and width is already running, the consumer attaches to it
// and that session is returned. A source that cannot be read yields a
// session that has already Failed. ctx bounds only the probe; the session
// itself lives until it finishes or is cancelled. consumer may be nil.
func (m *Manager) Start(ctx context.Context, path string, consumer Consumer) (*Session, error) {
	if m.isClosed() {
		return nil, ErrManagerClosed
	}
	path = filepath.Clean(path)

	fp, err := m.store.FingerprintOf(path)
	if err != nil {
		return m.failed(path, err, consumer), nil
	}

	info, err := m.prober.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return m.failed(path, fmt.Errorf("%w: probe: %v", ErrExtractionFailed, err), consumer), nil
	}

	width := ThumbnailWidth(info.Width, info.Height, m.opts)
	key := thumbcache.NewKey(path, width)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if s, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		metrics.SessionAttachTotal.Inc()
		log.Debug("Attaching to in-flight session %s for %s", s.id, key)
		s.attach(consumer)
		return s, nil
	}
	s := newSession(m, key, path, fp, info.Rotation, info.Duration)
	m.inflight[key] = s
	m.sessions[s.id] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.attach(consumer)
	m.onWorker(s.checkCache)
	return s, nil
}

// failed registers a session that never left CheckingCache.
func (m *Manager) failed(path string, err error, consumer Consumer) *Session {
	s := newSession(m, thumbcache.Key{ContentKey: thumbcache.ContentKey(path)}, path, thumbcache.Fingerprint{}, 0, 0)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.attach(consumer)
	s.finish(Failed, err)
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Release cancels the session (if still running) and forgets it. Every
// consumer attached to it is told the session was cancelled.
func (m *Manager) Release(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Cancel()
	return true
}

// Prune forgets terminal sessions that finished more than maxAge ago and
// returns how many were removed.
func (m *Manager) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.finishedBefore(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug("Pruned %d finished sessions", removed)
	}
	return removed
}

// Active returns the number of sessions that have not finished.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Close cancels every running session, waits for them to finish and stops
// both queues.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	running := make([]*Session, 0, len(m.inflight))
	for _, s := range m.inflight {
		running = append(running, s)
	}
	m.mu.Unlock()

	for _, s := range running {
		s.Cancel()
	}
	m.stop()
	for _, s := range running {
		<-s.Done()
	}

	m.worker.Close()
	m.dispatch.Close()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// onWorker queues task on the worker. After Close the worker is gone and
// task runs inline so a late extractor result still finishes its session.
func (m *Manager) onWorker(task func()) {
	if !m.worker.Submit(task) {
		task()
	}
}

func (m *Manager) retire(s *Session) {
	m.mu.Lock()
	if cur, ok := m.inflight[s.key]; ok && cur == s {
		delete(m.inflight, s.key)
	}
	m.mu.Unlock()
	metrics.SessionsActive.Dec()
}

// IsSourceUnavailable reports whether err means the media file itself
// could not be read.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, thumbcache.ErrSourceUnavailable)
}
