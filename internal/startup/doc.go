// Package startup handles process initialization and the startup and
// shutdown log output of the server.
//
// It prints build and system information, checks that the cache directory
// is writable and that ffmpeg/ffprobe are executable, sizes the Go memory
// limit from the container limit and lists the registered HTTP routes.
// Configuration itself is loaded by internal/config.
package startup
