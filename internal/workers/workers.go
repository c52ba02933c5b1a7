package workers

import (
	"os"
	"runtime"
	"strconv"
)

// ThreadsEnv overrides the computed thread count when set to a positive
// integer.
const ThreadsEnv = "SCRUBTHUMBS_THREADS"

// Count returns multiplier threads per available CPU, at least 1 and at
// most limit (0 means no cap). It respects container CPU limits via
// GOMAXPROCS. The SCRUBTHUMBS_THREADS environment variable takes
// precedence over the calculation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(ThreadsEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	n := int(float64(available) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns the thread count for CPU-bound work such as video
// decoding (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
