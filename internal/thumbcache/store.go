package thumbcache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"scrubthumbs/internal/filesystem"
	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/metrics"
)

var log = logging.Subsystem("thumbcache")

// Store owns the cache root directory. All mutations go through it and are
// whole-file: a new file is written beside the target and renamed into
// place, and corrupt files are deleted, so readers never observe a partial
// file.
type Store struct {
	root     string
	maxBytes uint64
	quota    QuotaManager
	decoder  PayloadDecoder
	retry    filesystem.RetryConfig

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

// NewStore creates a Store rooted at root. maxBytes is the cache budget; a
// budget of zero turns every Write into ErrQuotaWriteDenied. quota and
// decoder may be nil.
func NewStore(root string, maxBytes uint64, quota QuotaManager, decoder PayloadDecoder) *Store {
	return &Store{
		root:     root,
		maxBytes: maxBytes,
		quota:    quota,
		decoder:  decoder,
		retry:    filesystem.DefaultRetryConfig(),
		locks:    make(map[Key]*sync.Mutex),
	}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the cache file location for key: <root>/<width>/<contentKey>.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.root, strconv.Itoa(key.PixelWidth), key.ContentKey)
}

func (s *Store) lock(key Key) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// FingerprintOf captures the live fingerprint of a source media file. Any
// failure is reported as ErrSourceUnavailable.
func (s *Store) FingerprintOf(sourcePath string) (Fingerprint, error) {
	info, err := filesystem.StatWithRetry(sourcePath, s.retry)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !info.Mode().IsRegular() {
		return Fingerprint{}, fmt.Errorf("%w: %s is not a regular file", ErrSourceUnavailable, sourcePath)
	}
	return Fingerprint{
		ByteSize:   uint64(info.Size()),
		ModifiedAt: info.ModTime().Unix(),
	}, nil
}

// IsValid reports whether a well-formed cache file for key exists, uses the
// current format version, stores exactly fp and holds at least one record.
// It never returns an error; every failure means "not valid".
func (s *Store) IsValid(key Key, fp Fingerprint) bool {
	start := time.Now()
	result := s.validate(key, fp)
	metrics.CacheOperationDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	metrics.CacheValidationsTotal.WithLabelValues(result).Inc()
	return result == "valid"
}

func (s *Store) validate(key Key, fp Fingerprint) string {
	defer s.lock(key)()

	path := s.Path(key)
	f, err := filesystem.OpenWithRetry(path, s.retry)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Cannot open cache file %s: %v", path, err)
		}
		return "missing"
	}
	defer f.Close()

	r := bufio.NewReader(f)
	version, stored, err := DecodeHeader(r)
	if err != nil {
		log.Debug("Cache header unreadable for %s: %v", key, err)
		return "invalid"
	}
	if version != FormatVersion {
		log.Debug("Cache %s has version %d, want %d", key, version, FormatVersion)
		return "stale"
	}
	if stored != fp {
		log.Debug("Cache %s fingerprint mismatch: stored %s, live %s", key, stored, fp)
		return "stale"
	}

	count, err := countRecords(r)
	if err != nil {
		log.Debug("Cache %s failed structural check: %v", key, err)
		return "invalid"
	}
	if count == 0 {
		return "invalid"
	}
	return "valid"
}

// Read decodes the cache file for key. A missing file is ErrCacheMiss. A
// malformed file is deleted and reported as ErrCorruptCache.
func (s *Store) Read(key Key) (*CacheFile, error) {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("read").Observe(time.Since(start).Seconds())
	}()
	defer s.lock(key)()

	path := s.Path(key)
	f, err := filesystem.OpenWithRetry(path, s.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.CacheReadsTotal.WithLabelValues("miss").Inc()
			return nil, ErrCacheMiss
		}
		metrics.CacheReadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open cache file: %w", err)
	}

	log.Debug("Reading thumbnail cache from %s", path)
	file, err := Decode(bufio.NewReader(f), s.decoder)
	if closeErr := f.Close(); closeErr != nil {
		log.Warn("Failed to close cache file %s: %v", path, closeErr)
	}

	if err != nil {
		if errors.Is(err, ErrCorruptCache) {
			metrics.CacheReadsTotal.WithLabelValues("corrupt").Inc()
			log.Warn("Cache file will be deleted: %s: %v", path, err)
			s.remove(path)
			return nil, err
		}
		metrics.CacheReadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	metrics.CacheReadsTotal.WithLabelValues("hit").Inc()
	log.Debug("Finished reading thumbnail cache, %d in total", len(file.Records))
	return file, nil
}

// Write persists records for key, replacing any existing file. Before
// writing it asks the quota manager to evict older entries when the cache
// is over budget. On any encoding or I/O failure the partial file is
// removed and the previous file, if any, is left untouched.
func (s *Store) Write(key Key, fp Fingerprint, records []Record) error {
	if s.maxBytes == 0 {
		metrics.CacheWritesTotal.WithLabelValues("denied").Inc()
		log.Debug("Cache budget is zero, not persisting %s", key)
		return ErrQuotaWriteDenied
	}
	if len(records) == 0 {
		return ErrEmptyCache
	}

	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())
	}()

	s.enforceQuota()

	log.Info("Writing %d thumbnails with width %d to cache file", len(records), key.PixelWidth)

	defer s.lock(key)()

	path := s.Path(key)
	written, err := s.writeFile(path, fp, records)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.CacheWritesTotal.WithLabelValues("success").Inc()
	metrics.CacheWriteBytes.Add(float64(written))
	if marker, ok := s.quota.(StaleMarker); ok {
		marker.MarkStale()
	}
	log.Info("Finished writing thumbnail cache: %s", path)
	return nil
}

func (s *Store) enforceQuota() {
	if s.quota == nil {
		return
	}
	size := s.quota.CurrentSizeBytes()
	if size <= s.maxBytes {
		return
	}
	log.Info("Thumbnail cache size (%d) is larger than max allowed (%d) and will be cleared", size, s.maxBytes)
	if err := s.quota.EvictOldest(); err != nil {
		log.Warn("Eviction failed: %v", err)
	}
}

func (s *Store) writeFile(path string, fp Fingerprint, records []Record) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create cache file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) (int64, error) {
		_ = tmp.Close()
		s.remove(tmpPath)
		return 0, err
	}

	w := bufio.NewWriter(tmp)
	if err := Encode(w, fp, records); err != nil {
		return fail(fmt.Errorf("encode cache file: %w", err))
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flush cache file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync cache file: %w", err))
	}
	info, err := tmp.Stat()
	if err != nil {
		return fail(fmt.Errorf("stat cache file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		s.remove(tmpPath)
		return 0, fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		s.remove(tmpPath)
		return 0, fmt.Errorf("install cache file: %w", err)
	}
	return info.Size(), nil
}

// Delete removes the cache file for key if present.
func (s *Store) Delete(key Key) error {
	defer s.lock(key)()
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("Cannot delete cache file %s: %v", path, err)
	}
}
