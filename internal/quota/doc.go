// Package quota implements the cache-quota manager used by the thumbnail
// store. A Ledger keeps a sqlite table of every cache file under the cache
// root (path, width, size, modification time), reconciled from a directory
// walk. It reports the aggregate cache size and evicts the least recently
// written files once the configured budget is exceeded.
//
// The ledger is the only component that decides which files to evict; the
// thumbcache.Store merely asks for eviction before writing. Schedule
// registers a periodic maintenance job with a robfig/cron scheduler.
package quota
