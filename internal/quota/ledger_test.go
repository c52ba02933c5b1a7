package quota

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func openTestLedger(t *testing.T, maxBytes uint64) (*Ledger, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "thumbnails")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), root, maxBytes, 0.5)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, root
}

// putFile creates <root>/<width>/<name> with size bytes and the given age.
func putFile(t *testing.T, root string, width int, name string, size int, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(width))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLedger_CurrentSizeBytes(t *testing.T) {
	l, root := openTestLedger(t, 1<<20)

	if got := l.CurrentSizeBytes(); got != 0 {
		t.Errorf("empty cache size = %d, want 0", got)
	}

	putFile(t, root, 240, "a", 100, time.Hour)
	putFile(t, root, 320, "b", 50, time.Minute)
	putFile(t, root, 240, ".b.123.tmp", 999, 0) // in-progress write
	putFile(t, root, 240, "empty", 0, 0)

	// Cached total is served until marked stale.
	if got := l.CurrentSizeBytes(); got != 0 {
		t.Errorf("cached size = %d, want 0 before MarkStale", got)
	}

	l.MarkStale()
	if got := l.CurrentSizeBytes(); got != 150 {
		t.Errorf("size after MarkStale = %d, want 150", got)
	}

	stats, err := l.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 3 || stats.SizeBytes != 150 {
		t.Errorf("Stats() = %+v, want 3 entries / 150 bytes", stats)
	}
	if !stats.Oldest.Before(stats.Newest) {
		t.Errorf("Oldest %v should precede Newest %v", stats.Oldest, stats.Newest)
	}
}

func TestLedger_RefreshPrunesDeletedFiles(t *testing.T) {
	l, root := openTestLedger(t, 1<<20)
	ctx := context.Background()

	path := putFile(t, root, 240, "a", 10, time.Hour)
	putFile(t, root, 240, "b", 20, time.Hour)
	if err := l.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := l.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.SizeBytes != 20 {
		t.Errorf("Stats() = %+v, want 1 entry / 20 bytes", stats)
	}
}

func TestLedger_EvictOldest(t *testing.T) {
	// Budget 1000, low water 0.5 => evict down to 500 bytes.
	l, root := openTestLedger(t, 1000)

	oldest := putFile(t, root, 240, "oldest", 400, 4*time.Hour)
	older := putFile(t, root, 320, "older", 400, 3*time.Hour)
	newer := putFile(t, root, 240, "newer", 300, 2*time.Hour)
	newest := putFile(t, root, 240, "newest", 100, time.Hour)

	if err := l.EvictOldest(); err != nil {
		t.Fatalf("EvictOldest() error = %v", err)
	}

	for _, gone := range []string{oldest, older} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should have been evicted", filepath.Base(gone))
		}
	}
	for _, kept := range []string{newer, newest} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should have been kept: %v", filepath.Base(kept), err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "320")); !os.IsNotExist(err) {
		t.Error("emptied width directory should be removed")
	}
	if got := l.CurrentSizeBytes(); got != 400 {
		t.Errorf("size after eviction = %d, want 400", got)
	}
}

func TestLedger_EvictUnderBudgetIsNoop(t *testing.T) {
	l, root := openTestLedger(t, 1000)
	path := putFile(t, root, 240, "a", 100, time.Hour)

	removed, err := l.Evict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file removed while under budget: %v", err)
	}
}

func TestLedger_ZeroBudgetNeverEvicts(t *testing.T) {
	l, root := openTestLedger(t, 0)
	path := putFile(t, root, 240, "a", 100, time.Hour)

	if err := l.EvictOldest(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("zero budget must not evict: %v", err)
	}
}

func TestLedger_MissingRoot(t *testing.T) {
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"),
		filepath.Join(t.TempDir(), "does-not-exist"), 100, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if err := l.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() on missing root error = %v", err)
	}
}

func TestLedger_Maintain(t *testing.T) {
	l, root := openTestLedger(t, 100)
	putFile(t, root, 240, "a", 80, 2*time.Hour)
	putFile(t, root, 240, "b", 80, time.Hour)

	if err := l.Maintain(context.Background()); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if got := l.CurrentSizeBytes(); got > 50 {
		t.Errorf("size after Maintain = %d, want <= 50", got)
	}
}

func TestLedger_Schedule(t *testing.T) {
	l, _ := openTestLedger(t, 100)
	c := cron.New()

	id, err := l.Schedule(c, "@every 30m")
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if c.Entry(id).ID != id {
		t.Error("scheduled entry not registered")
	}

	if _, err := l.Schedule(c, "not a schedule"); err == nil {
		t.Error("expected error for invalid spec")
	}
}
