package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/metrics"
	"scrubthumbs/internal/thumbcache"
	"scrubthumbs/internal/workers"
)

var ffmpegLog = logging.Subsystem("ffmpeg")

const (
	// DefaultThumbnailCount is the number of frames requested per file.
	DefaultThumbnailCount = 100

	// DefaultBatchSize is the number of frames delivered per callback.
	DefaultBatchSize = 10

	maxFrameBytes = 32 << 20
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}

	// ErrTruncatedFrame reports a frame cut off at the end of ffmpeg output.
	ErrTruncatedFrame = errors.New("truncated frame in ffmpeg output")
)

// FFmpegExtractor produces evenly spaced frames of a video with ffmpeg.
// Frames are emitted unrotated; orientation correction is the caller's
// concern.
type FFmpegExtractor struct {
	ffmpegPath string
	count      int
	batchSize  int
	threads    int
	maxFrame   int
}

// NewFFmpegExtractor creates an extractor. count and batchSize fall back to
// their defaults when not positive; threads of zero sizes the decoder pool
// from the available CPUs.
func NewFFmpegExtractor(ffmpegPath string, count, batchSize, threads int) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if count <= 0 {
		count = DefaultThumbnailCount
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if threads <= 0 {
		threads = workers.ForCPU(8)
	}
	return &FFmpegExtractor{
		ffmpegPath: ffmpegPath,
		count:      count,
		batchSize:  batchSize,
		threads:    threads,
		maxFrame:   maxFrameBytes,
	}
}

// Extract runs ffmpeg on path scaled to width pixels and calls onBatch with
// each group of frames in presentation order, along with the number of
// frames delivered so far and the expected total. duration is the probed
// length of the video in seconds and spaces the frames evenly across it.
// It returns nil once every frame has been delivered. Cancelling ctx kills
// ffmpeg and returns ctx.Err(). A malformed or oversized frame also kills
// ffmpeg, so a stalled pipe never outlives the call.
func (e *FFmpegExtractor) Extract(ctx context.Context, path string, width int, duration float64, onBatch func(frames []thumbcache.Record, delivered, expected int)) error {
	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	if width <= 0 {
		return fmt.Errorf("invalid thumbnail width %d", width)
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("cannot determine duration of %s", path)
	}

	expected := e.count
	fps := float64(expected) / duration
	args := e.buildArgs(path, width, fps, expected)
	ffmpegLog.Debug("Running %s %v", e.ffmpegPath, args)

	runCtx, kill := context.WithCancel(ctx)
	defer kill()

	cmd := exec.CommandContext(runCtx, e.ffmpegPath, args...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	delivered, scanErr := e.readFrames(bufio.NewReaderSize(stdout, 256*1024), fps, expected, onBatch)
	if scanErr != nil {
		// Nothing reads stdout any more; ffmpeg would block on a full pipe.
		kill()
	}
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if scanErr != nil {
		ffmpegLog.Warn("Stopped ffmpeg after %d frames of %s: %v", delivered, path, scanErr)
		return fmt.Errorf("reading ffmpeg output: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", waitErr, stderr.String())
	}

	ffmpegLog.Debug("Extracted %d frames at %dpx from %s in %v", delivered, width, path, time.Since(start))
	return nil
}

func (e *FFmpegExtractor) buildArgs(path string, width int, fps float64, count int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-threads", strconv.Itoa(e.threads),
		"-noautorotate",
		"-i", path,
		"-an", "-sn", "-dn",
		"-vf", fmt.Sprintf("fps=%s,scale=%d:-2", strconv.FormatFloat(fps, 'f', 6, 64), width),
		"-frames:v", strconv.Itoa(count),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "4",
		"-",
	}
}

// readFrames splits the MJPEG stream into frames and delivers them in
// batches. Frame i is stamped at i/fps seconds.
func (e *FFmpegExtractor) readFrames(r *bufio.Reader, fps float64, expected int, onBatch func([]thumbcache.Record, int, int)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(512*1024, e.maxFrame)), e.maxFrame)
	scanner.Split(splitJPEG)

	delivered := 0
	batch := make([]thumbcache.Record, 0, e.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		total := expected
		if delivered > total {
			total = delivered
		}
		onBatch(batch, delivered, total)
		batch = make([]thumbcache.Record, 0, e.batchSize)
	}

	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		rec := thumbcache.Record{
			Timestamp: roundMillis(float64(delivered) / fps),
			Image:     frame,
		}
		if w, h, err := decodeJPEGConfig(frame); err == nil {
			rec.Width, rec.Height = w, h
		}
		batch = append(batch, rec)
		delivered++
		metrics.FramesExtractedTotal.Inc()

		if len(batch) >= e.batchSize {
			flush()
		}
	}
	flush()

	return delivered, scanner.Err()
}

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images. ffmpeg's
// MJPEG encoder never emits an EOI marker inside entropy-coded data, so
// scanning for SOI..EOI is sufficient.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins the next SOI.
		if len(data) > 0 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, ErrTruncatedFrame
		}
		return start, nil, nil
	}
	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}

func decodeJPEGConfig(frame []byte) (int, int, error) {
	return (&ImageCodec{}).DecodeConfig(frame)
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
