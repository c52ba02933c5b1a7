package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":  "/srv/media",
		"cache":  "/srv/media/cache",
		"shared": "/srv",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/srv/media/movie.mkv", "media"},
		{"/srv/media/cache/240/abc", "cache"},
		{"/srv/other/file", "shared"},
		{"/srv/media", "media"},
		{"/home/user/file", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/srv/media"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}
}

func TestStatWithRetry_NotExistIsNotRetried(t *testing.T) {
	calls := 0
	origStat := osStat
	osStat = func(name string) (os.FileInfo, error) {
		calls++
		return origStat(name)
	}
	defer func() { osStat = origStat }()

	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), DefaultRetryConfig())
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("stat called %d times, want 1", calls)
	}
}

func TestStatWithRetry_RetriesStaleHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	calls := 0
	var slept []time.Duration
	origStat, origSleep := osStat, sleep
	osStat = func(name string) (os.FileInfo, error) {
		calls++
		if calls < 3 {
			return nil, &os.PathError{Op: "stat", Path: name, Err: syscall.ESTALE}
		}
		return origStat(name)
	}
	sleep = func(d time.Duration) { slept = append(slept, d) }
	defer func() { osStat, sleep = origStat, origSleep }()

	config := RetryConfig{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 15 * time.Millisecond}
	if _, err := StatWithRetry(path, config); err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("stat called %d times, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != 10*time.Millisecond || slept[1] != 15*time.Millisecond {
		t.Errorf("backoff sequence = %v, want [10ms 15ms]", slept)
	}
}

func TestStatWithRetry_GivesUp(t *testing.T) {
	origStat, origSleep := osStat, sleep
	osStat = func(name string) (os.FileInfo, error) {
		return nil, &os.PathError{Op: "stat", Path: name, Err: syscall.ESTALE}
	}
	sleep = func(time.Duration) {}
	defer func() { osStat, sleep = origStat, origSleep }()

	_, err := StatWithRetry("/nfs/file", RetryConfig{MaxRetries: 2})
	if !isNFSStaleError(err) {
		t.Fatalf("expected ESTALE after retries, got %v", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	buf := make([]byte, 3)
	if _, err := f.Read(buf); err != nil || string(buf) != "abc" {
		t.Errorf("Read() = %q, %v", buf, err)
	}
}
