/*
Package workers provides the execution primitives used by thumbnail
generation.

# Serial queues

Queue is an unbounded FIFO executor backed by one goroutine. The session
manager owns two of them: a worker queue that performs all cache I/O and
consumes extractor batches, and a dispatch queue that delivers progress
and completion callbacks to consumers. Because Submit never blocks, a slow
consumer cannot stall the worker.

	q := workers.NewQueue("cache-worker")
	defer q.Close()
	q.Submit(func() { ... })

# Thread sizing

When running in containers the number of usable CPUs may be limited by
cgroup constraints. runtime.NumCPU() reports the host count while
GOMAXPROCS follows the container limit (Go 1.19+), so ForCPU uses the
latter to size ffmpeg's decoder threads:

	threads := workers.ForCPU(8) // at most 8

The SCRUBTHUMBS_THREADS environment variable overrides the calculation:

	env:
	- name: SCRUBTHUMBS_THREADS
	  value: "2"
*/
package workers
