// Package thumbcache persists scrub-bar thumbnail sets on disk and looks up
// the thumbnail to show for a playback position.
//
// A cache file holds every thumbnail generated for one source file at one
// pixel width. Files live at <root>/<width>/<contentKey> and use a fixed
// little-endian layout:
//
//	[formatVersion: u8]
//	[source byte size: u64]
//	[source mtime, unix seconds: i64]
//	repeated until EOF:
//	  [blockLength: i64]      length of timestamp + payload
//	  [timestamp seconds: f64]
//	  [image payload: blockLength-8 bytes]
//
// A file is trusted only when its version matches FormatVersion and its
// stored Fingerprint equals the live fingerprint of the source. Truncated or
// otherwise malformed files are reported as ErrCorruptCache and removed by
// the Store.
package thumbcache
