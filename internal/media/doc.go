// Package media adapts external tools and image libraries to the thumbnail
// cache.
//
// It provides:
//   - ImageCodec: reads payload dimensions and rotates thumbnails, using
//     libvips when initialised and imaging otherwise
//   - Prober: duration, coded dimensions and display rotation via ffprobe
//   - FFmpegExtractor: evenly spaced, unrotated JPEG frames streamed from
//     ffmpeg in batches
package media
