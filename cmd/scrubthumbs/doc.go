// Package main provides the scrubthumbs command.
//
// scrubthumbs produces the small preview images shown while dragging a
// video's seek bar. Frames are sampled evenly across the video with
// ffmpeg, corrected for display rotation, and cached on disk so later
// requests for the same file are served without decoding anything.
//
// # Commands
//
//	scrubthumbs serve     run the HTTP API
//	scrubthumbs generate  build (or load) thumbnails for one video
//	scrubthumbs evict     trim the cache to its low-water mark
//	scrubthumbs stats     print cache usage
//	scrubthumbs version   print build information
//
// Every command accepts -config to name a YAML config file. Without it
// config.yaml is looked up in the user config directory and the working
// directory, and SCRUBTHUMBS_* environment variables override any key.
//
// # Server lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT
//  2. Configuration Loading: file, environment, validation
//  3. Cache Setup: cache directory, ledger database, ffmpeg and ffprobe
//  4. Component Initialization: libvips, session manager, cron jobs
//  5. HTTP Server Setup: routes, middleware, listener
//  6. Graceful Shutdown: on SIGINT/SIGTERM the HTTP server drains,
//     running sessions are cancelled and the ledger is closed
//
// # Background jobs
//
//   - Cache maintenance: reconciles the ledger with the cache directory
//     and evicts least recently used files when over budget
//   - Session pruning: forgets finished sessions after server.session_retention
package main
