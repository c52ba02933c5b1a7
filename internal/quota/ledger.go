package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/metrics"
)

var log = logging.Subsystem("quota")

const (
	// Default timeout for ledger operations
	defaultTimeout = 30 * time.Second

	// sizeCacheTTL is how long a measured total is served before the
	// ledger walks the cache root again.
	sizeCacheTTL = 2 * time.Minute

	// DefaultLowWaterRatio is the fraction of the budget eviction aims for.
	DefaultLowWaterRatio = 0.8
)

// Entry is one cache file tracked by the ledger. Path is relative to the
// cache root.
type Entry struct {
	Path    string
	Width   int
	Size    int64
	ModTime time.Time
}

// Stats summarises the ledger contents.
type Stats struct {
	Entries   int
	SizeBytes uint64
	Oldest    time.Time
	Newest    time.Time
}

// Ledger tracks cache files in sqlite and enforces the cache budget.
type Ledger struct {
	db       *sql.DB
	dbPath   string
	root     string
	maxBytes uint64
	lowWater float64

	mu          sync.Mutex // serializes refresh and eviction
	stale       atomic.Bool
	lastRefresh atomic.Int64
	cachedSize  atomic.Uint64
}

// Open creates or opens the ledger database at dbPath for the cache rooted
// at root. maxBytes is the cache budget and lowWater the fraction of it that
// eviction reduces the cache to.
func Open(ctx context.Context, dbPath, root string, maxBytes uint64, lowWater float64) (*Ledger, error) {
	if lowWater <= 0 || lowWater > 1 {
		lowWater = DefaultLowWaterRatio
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close ledger after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	l := &Ledger{
		db:       db,
		dbPath:   dbPath,
		root:     root,
		maxBytes: maxBytes,
		lowWater: lowWater,
	}
	l.stale.Store(true)

	if err := l.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close ledger after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	log.Info("Quota ledger ready at %s (budget %d bytes)", dbPath, maxBytes)
	return l, nil
}

func (l *Ledger) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		path TEXT PRIMARY KEY,
		width INTEGER NOT NULL,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		seen_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_mod_time ON cache_entries(mod_time);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_width ON cache_entries(width);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// MarkStale forces the next size query to re-walk the cache root.
func (l *Ledger) MarkStale() {
	l.stale.Store(true)
}

// CurrentSizeBytes returns the aggregate size of the cache. The total is
// re-measured when marked stale or older than two minutes; on a failed
// measurement the previous total is returned.
func (l *Ledger) CurrentSizeBytes() uint64 {
	if l.needsRefresh() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		l.mu.Lock()
		err := l.refreshLocked(ctx)
		l.mu.Unlock()
		if err != nil {
			log.Warn("Failed to measure cache size, using last known value: %v", err)
		}
	}
	return l.cachedSize.Load()
}

func (l *Ledger) needsRefresh() bool {
	if l.stale.Load() {
		return true
	}
	last := time.Unix(0, l.lastRefresh.Load())
	return time.Since(last) > sizeCacheTTL
}

// Refresh reconciles the ledger with the files currently under the cache
// root.
func (l *Ledger) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshLocked(ctx)
}

func (l *Ledger) refreshLocked(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.QuotaRefreshDuration.Observe(time.Since(start).Seconds())
		recordQuery("refresh", err)
	}()

	entries, err := l.scan()
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refresh: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("failed to roll back refresh: %v", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cache_entries (path, width, size, mod_time, seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			width = excluded.width,
			size = excluded.size,
			mod_time = excluded.mod_time,
			seen_at = excluded.seen_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stamp := time.Now().UnixNano()
	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.Path, e.Width, e.Size, e.ModTime.UnixNano(), stamp); err != nil {
			return fmt.Errorf("upsert %s: %w", e.Path, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE seen_at != ?`, stamp); err != nil {
		return fmt.Errorf("prune missing entries: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh: %w", err)
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}
	l.cachedSize.Store(uint64(total))
	l.lastRefresh.Store(time.Now().UnixNano())
	l.stale.Store(false)

	metrics.QuotaSizeBytes.Set(float64(total))
	metrics.QuotaEntries.Set(float64(len(entries)))
	log.Debug("Ledger refreshed: %d entries, %d bytes in %v", len(entries), total, time.Since(start))
	return nil
}

// scan walks <root>/<width>/<file>, skipping temporary files left by
// in-progress writes.
func (l *Ledger) scan() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == l.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 2 {
			return nil
		}
		width, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		entries = append(entries, Entry{
			Path:    filepath.ToSlash(rel),
			Width:   width,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk cache root: %w", err)
	}
	return entries, nil
}

// EvictOldest deletes the least recently written cache files until the
// cache is no larger than the low-water mark of the budget. Emptied width
// directories are removed.
func (l *Ledger) EvictOldest() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	_, err := l.Evict(ctx)
	return err
}

// Evict is EvictOldest with a caller-supplied context. It returns the
// number of files removed.
func (l *Ledger) Evict(ctx context.Context) (removed int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { recordQuery("evict", err) }()

	if l.maxBytes == 0 {
		return 0, nil
	}
	if err := l.refreshLocked(ctx); err != nil {
		return 0, err
	}

	target := uint64(float64(l.maxBytes) * l.lowWater)
	total := l.cachedSize.Load()
	if total <= target {
		return 0, nil
	}

	candidates, err := l.oldestFirst(ctx)
	if err != nil {
		return 0, err
	}

	dirs := make(map[string]struct{})
	for _, e := range candidates {
		if total <= target {
			break
		}
		full := filepath.Join(l.root, filepath.FromSlash(e.Path))
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Cannot evict %s: %v", full, err)
			continue
		}
		if _, err := l.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE path = ?`, e.Path); err != nil {
			return removed, fmt.Errorf("forget %s: %w", e.Path, err)
		}
		dirs[filepath.Dir(full)] = struct{}{}
		total -= uint64(e.Size)
		removed++
	}

	for dir := range dirs {
		// Fails harmlessly when the directory still holds files.
		_ = os.Remove(dir)
	}

	l.cachedSize.Store(total)
	metrics.QuotaEvictionsTotal.Add(float64(removed))
	metrics.QuotaSizeBytes.Set(float64(total))
	log.Info("Evicted %d cache files, cache size now %d bytes (target %d)", removed, total, target)
	return removed, nil
}

func (l *Ledger) oldestFirst(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT path, width, size, mod_time FROM cache_entries
		ORDER BY mod_time ASC, path ASC`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var mod int64
		if err := rows.Scan(&e.Path, &e.Width, &e.Size, &mod); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ModTime = time.Unix(0, mod)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns totals for the tracked cache files.
func (l *Ledger) Stats(ctx context.Context) (stats Stats, err error) {
	defer func() { recordQuery("sum", err) }()

	var oldest, newest sql.NullInt64
	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), MIN(mod_time), MAX(mod_time)
		FROM cache_entries`)
	var size int64
	if err := row.Scan(&stats.Entries, &size, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	stats.SizeBytes = uint64(size)
	if oldest.Valid {
		stats.Oldest = time.Unix(0, oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.Unix(0, newest.Int64)
	}
	return stats, nil
}

func recordQuery(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.QuotaQueryTotal.WithLabelValues(op, status).Inc()
}
