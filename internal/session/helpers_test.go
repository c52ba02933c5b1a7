package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scrubthumbs/internal/media"
	"scrubthumbs/internal/thumbcache"
)

const waitTimeout = 5 * time.Second

func makeJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: 40, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

// makeBatches returns n batches of size frames with timestamps one second
// apart.
func makeBatches(t *testing.T, n, size int) [][]thumbcache.Record {
	t.Helper()
	batches := make([][]thumbcache.Record, n)
	idx := 0
	for i := range batches {
		for j := 0; j < size; j++ {
			batches[i] = append(batches[i], thumbcache.Record{
				Timestamp: float64(idx),
				Image:     makeJPEG(t, uint8(idx*10)),
				Width:     16,
				Height:    9,
			})
			idx++
		}
	}
	return batches
}

func flatten(batches [][]thumbcache.Record) []thumbcache.Record {
	var out []thumbcache.Record
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

type fakeProber struct {
	info  media.VideoInfo
	err   error
	calls atomic.Int32
}

func (p *fakeProber) Probe(_ context.Context, _ string) (*media.VideoInfo, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	info := p.info
	return &info, nil
}

// scriptedExtractor replays batches. When step is non-nil each batch waits
// for a value (or close) on it.
type scriptedExtractor struct {
	batches      [][]thumbcache.Record
	expected     int
	expecteds    []int // per-batch expected totals, overrides expected
	step         chan struct{}
	err          error
	beforeReturn func()

	calls     atomic.Int32
	mu        sync.Mutex
	durations []float64
}

func (e *scriptedExtractor) Extract(ctx context.Context, _ string, _ int, duration float64, onBatch func([]thumbcache.Record, int, int)) error {
	e.calls.Add(1)
	e.mu.Lock()
	e.durations = append(e.durations, duration)
	e.mu.Unlock()
	delivered := 0
	for i, b := range e.batches {
		if e.step != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.step:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered += len(b)
		expected := e.expected
		if i < len(e.expecteds) {
			expected = e.expecteds[i]
		}
		onBatch(b, delivered, expected)
	}
	if e.beforeReturn != nil {
		e.beforeReturn()
	}
	return e.err
}

// markingRotator prefixes every payload with 'R' so double rotation is
// visible.
type markingRotator struct {
	calls atomic.Int32
}

func (r *markingRotator) Rotate(payload []byte, _ int) ([]byte, error) {
	r.calls.Add(1)
	return append([]byte{'R'}, payload...), nil
}

type recordingConsumer struct {
	mu       sync.Mutex
	progress []float64
	ready    int
	failures []error

	progressCh chan float64
	doneCh     chan struct{}
}

func newConsumer() *recordingConsumer {
	return &recordingConsumer{
		progressCh: make(chan float64, 256),
		doneCh:     make(chan struct{}, 4),
	}
}

func (c *recordingConsumer) OnProgress(f float64) {
	c.mu.Lock()
	c.progress = append(c.progress, f)
	c.mu.Unlock()
	c.progressCh <- f
}

func (c *recordingConsumer) OnReady() {
	c.mu.Lock()
	c.ready++
	c.mu.Unlock()
	c.doneCh <- struct{}{}
}

func (c *recordingConsumer) OnFailed(err error) {
	c.mu.Lock()
	c.failures = append(c.failures, err)
	c.mu.Unlock()
	c.doneCh <- struct{}{}
}

func (c *recordingConsumer) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-c.doneCh:
	case <-time.After(waitTimeout):
		t.Fatal("consumer was not notified of the outcome")
	}
}

func (c *recordingConsumer) waitProgress(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.progressCh:
		case <-time.After(waitTimeout):
			t.Fatalf("received %d of %d progress updates", i, n)
		}
	}
}

func (c *recordingConsumer) snapshot() ([]float64, int, []error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.progress...), c.ready, append([]error(nil), c.failures...)
}

type harness struct {
	mgr       *Manager
	store     *thumbcache.Store
	prober    *fakeProber
	rotator   *markingRotator
	extractor *scriptedExtractor
	source    string
}

func newHarness(t *testing.T, ext *scriptedExtractor, maxBytes uint64, rotation int) *harness {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(source, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	h := &harness{
		store:     thumbcache.NewStore(filepath.Join(dir, "cache"), maxBytes, nil, media.NewImageCodec(0)),
		prober:    &fakeProber{info: media.VideoInfo{Duration: 10, Width: 1920, Height: 1080, Rotation: rotation}},
		rotator:   &markingRotator{},
		extractor: ext,
		source:    source,
	}
	h.mgr = NewManager(h.store, h.prober, h.extractor, h.rotator, DefaultOptions())
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) key() thumbcache.Key {
	return thumbcache.NewKey(h.source, DefaultFixedLength)
}

func (h *harness) fingerprint(t *testing.T) thumbcache.Fingerprint {
	t.Helper()
	fp, err := h.store.FingerprintOf(h.source)
	if err != nil {
		t.Fatalf("FingerprintOf: %v", err)
	}
	return fp
}

func (h *harness) cacheExists() bool {
	_, err := os.Stat(h.store.Path(h.key()))
	return err == nil
}

func (h *harness) start(t *testing.T, c Consumer) *Session {
	t.Helper()
	s, err := h.mgr.Start(context.Background(), h.source, c)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func wait(t *testing.T, s *Session) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("session %s did not finish (state %s)", s.ID(), s.State())
	}
	return err
}
