package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"scrubthumbs/internal/thumbcache"
)

func TestSplitJPEG(t *testing.T) {
	a := makeJPEG(t, 8, 8)
	b := makeJPEG(t, 16, 8)

	// Leading noise and a gap between frames are skipped.
	var stream bytes.Buffer
	stream.WriteString("noise")
	stream.Write(a)
	stream.Write([]byte{0x00, 0xFF})
	stream.Write(b)

	scanner := bufio.NewScanner(bytes.NewReader(stream.Bytes()))
	scanner.Buffer(make([]byte, 0, 64), 1<<20)
	scanner.Split(splitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], a) || !bytes.Equal(frames[1], b) {
		t.Error("frames do not match the encoded images")
	}
}

func TestSplitJPEGTruncated(t *testing.T) {
	a := makeJPEG(t, 8, 8)
	stream := append(append([]byte(nil), a...), a[:len(a)/2]...)

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(splitJPEG)

	count := 0
	for scanner.Scan() {
		count++
	}
	if count != 1 {
		t.Errorf("got %d complete frames, want 1", count)
	}
	if !errors.Is(scanner.Err(), ErrTruncatedFrame) {
		t.Errorf("scanner error = %v, want ErrTruncatedFrame", scanner.Err())
	}
}

func TestReadFramesBatches(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 7; i++ {
		stream.Write(makeJPEG(t, 16, 9))
	}

	e := NewFFmpegExtractor("", 7, 3, 1)

	type call struct {
		n, delivered, expected int
		first                  float64
	}
	var calls []call
	var all []thumbcache.Record
	delivered, err := e.readFrames(bufio.NewReader(&stream), 2, 7, func(frames []thumbcache.Record, d, exp int) {
		calls = append(calls, call{len(frames), d, exp, frames[0].Timestamp})
		all = append(all, frames...)
	})
	if err != nil {
		t.Fatalf("readFrames() error = %v", err)
	}
	if delivered != 7 {
		t.Errorf("delivered = %d, want 7", delivered)
	}

	want := []call{{3, 3, 7, 0}, {3, 6, 7, 1.5}, {1, 7, 7, 3}}
	if len(calls) != len(want) {
		t.Fatalf("got %d batches, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("batch %d = %+v, want %+v", i, calls[i], want[i])
		}
	}

	for i, r := range all {
		if r.Width != 16 || r.Height != 9 {
			t.Errorf("frame %d size = %dx%d, want 16x9", i, r.Width, r.Height)
		}
	}
}

func TestReadFramesExpectedGrows(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 4; i++ {
		stream.Write(makeJPEG(t, 4, 4))
	}
	e := NewFFmpegExtractor("", 2, 2, 1)

	var lastExpected int
	_, err := e.readFrames(bufio.NewReader(&stream), 1, 2, func(_ []thumbcache.Record, d, exp int) {
		if exp < d {
			t.Errorf("expected %d < delivered %d", exp, d)
		}
		lastExpected = exp
	})
	if err != nil {
		t.Fatalf("readFrames() error = %v", err)
	}
	if lastExpected != 4 {
		t.Errorf("final expected = %d, want 4", lastExpected)
	}
}

func TestBuildArgs(t *testing.T) {
	e := NewFFmpegExtractor("ffmpeg", 100, 10, 2)
	args := strings.Join(e.buildArgs("/media/a.mp4", 240, 0.5, 100), " ")

	for _, want := range []string{
		"-noautorotate",
		"-threads 2",
		"-i /media/a.mp4",
		"fps=0.500000,scale=240:-2",
		"-frames:v 100",
		"-f image2pipe",
		"-vcodec mjpeg",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestNewFFmpegExtractorDefaults(t *testing.T) {
	e := NewFFmpegExtractor("", 0, 0, 0)
	if e.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q", e.ffmpegPath)
	}
	if e.count != DefaultThumbnailCount || e.batchSize != DefaultBatchSize {
		t.Errorf("count/batch = %d/%d", e.count, e.batchSize)
	}
	if e.threads < 1 {
		t.Errorf("threads = %d, want >= 1", e.threads)
	}
}

// writeScript installs an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExtractOversizedFrameStopsFFmpeg(t *testing.T) {
	// An SOI marker followed by an endless stream and no EOI.
	ffmpeg := writeScript(t, `printf '\377\330'; exec cat /dev/zero`)
	e := NewFFmpegExtractor(ffmpeg, 10, 5, 1)
	e.maxFrame = 64 * 1024

	done := make(chan error, 1)
	go func() {
		done <- e.Extract(context.Background(), "/media/a.mp4", 160, 10, func([]thumbcache.Record, int, int) {
			t.Error("no frame should be delivered")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, bufio.ErrTooLong) {
			t.Errorf("Extract() error = %v, want bufio.ErrTooLong", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Extract() did not return after an oversized frame")
	}
}

func TestExtractDeliversFramesFromFFmpeg(t *testing.T) {
	frames := filepath.Join(t.TempDir(), "frames.mjpeg")
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		stream.Write(makeJPEG(t, 8, 8))
	}
	if err := os.WriteFile(frames, stream.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	ffmpeg := writeScript(t, "cat '"+frames+"'")
	e := NewFFmpegExtractor(ffmpeg, 3, 2, 1)

	var got []thumbcache.Record
	err := e.Extract(context.Background(), "/media/a.mp4", 160, 6, func(b []thumbcache.Record, _, _ int) {
		got = append(got, b...)
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3", len(got))
	}
	// Three frames over six seconds are two seconds apart.
	if got[2].Timestamp != 4 {
		t.Errorf("third frame at %v, want 4", got[2].Timestamp)
	}
}

func TestExtractRejectsUnknownDuration(t *testing.T) {
	e := NewFFmpegExtractor("ffmpeg", 3, 2, 1)
	for _, d := range []float64{0, -1} {
		if err := e.Extract(context.Background(), "/media/a.mp4", 160, d, nil); err == nil {
			t.Errorf("Extract() with duration %v should fail", d)
		}
	}
}
