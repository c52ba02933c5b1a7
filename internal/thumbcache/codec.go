package thumbcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// FormatVersion is the only cache layout this package reads or writes.
// Files carrying any other version are treated as invalid, never migrated.
const FormatVersion uint8 = 2

const (
	// HeaderSize is the length of the fixed header in bytes.
	HeaderSize = 1 + 8 + 8

	timestampSize = 8

	// maxBlockLength bounds a single record so a damaged length prefix
	// cannot trigger a huge allocation.
	maxBlockLength = 64 << 20
)

var byteOrder = binary.LittleEndian

// EncodeHeader writes the version byte and source fingerprint.
func EncodeHeader(w io.Writer, fp Fingerprint) error {
	var buf [HeaderSize]byte
	buf[0] = FormatVersion
	byteOrder.PutUint64(buf[1:9], fp.ByteSize)
	byteOrder.PutUint64(buf[9:17], uint64(fp.ModifiedAt))
	_, err := w.Write(buf[:])
	return err
}

// EncodeRecord appends one length-prefixed record.
func EncodeRecord(w io.Writer, r Record) error {
	if len(r.Image) == 0 {
		return errors.New("record has empty image payload")
	}
	blockLength := int64(timestampSize + len(r.Image))
	if blockLength > maxBlockLength {
		return fmt.Errorf("record payload too large: %d bytes", len(r.Image))
	}

	var buf [16]byte
	byteOrder.PutUint64(buf[0:8], uint64(blockLength))
	byteOrder.PutUint64(buf[8:16], math.Float64bits(r.Timestamp))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := w.Write(r.Image)
	return err
}

// Encode writes a complete cache file in a single pass.
func Encode(w io.Writer, fp Fingerprint, records []Record) error {
	if err := EncodeHeader(w, fp); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		if err := EncodeRecord(w, r); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return nil
}

// DecodeHeader reads the fixed header. A short header is ErrCorruptCache.
func DecodeHeader(r io.Reader) (uint8, Fingerprint, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, Fingerprint{}, corruptOrIO(err, "header")
	}
	fp := Fingerprint{
		ByteSize:   byteOrder.Uint64(buf[1:9]),
		ModifiedAt: int64(byteOrder.Uint64(buf[9:17])),
	}
	return buf[0], fp, nil
}

// Decode reads a complete cache file. Records are returned in file order.
// Every payload is checked with dec when dec is non-nil. The stream must end
// exactly on a record boundary; anything else is ErrCorruptCache and no
// partial result is returned.
func Decode(r io.Reader, dec PayloadDecoder) (*CacheFile, error) {
	version, fp, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptCache, version)
	}

	file := &CacheFile{Version: version, Fingerprint: fp}
	_, err = decodeRecords(r, func(rec Record) error {
		if dec != nil {
			w, h, err := dec.DecodeConfig(rec.Image)
			if err != nil {
				return fmt.Errorf("%w: unreadable image at %.3fs: %v", ErrCorruptCache, rec.Timestamp, err)
			}
			rec.Width, rec.Height = w, h
		}
		file.Records = append(file.Records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// countRecords walks the record blocks without keeping payloads and returns
// how many complete records follow the header.
func countRecords(r io.Reader) (int, error) {
	return decodeRecords(r, nil)
}

// decodeRecords reads blocks until a clean EOF. When fn is nil payloads are
// skipped instead of buffered.
func decodeRecords(r io.Reader, fn func(Record) error) (int, error) {
	var prefix [16]byte
	count := 0
	for {
		n, err := io.ReadFull(r, prefix[:8])
		if err == io.EOF && n == 0 {
			return count, nil
		}
		if err != nil {
			return count, corruptOrIO(err, fmt.Sprintf("record %d length", count))
		}

		blockLength := int64(byteOrder.Uint64(prefix[0:8]))
		if blockLength <= timestampSize || blockLength > maxBlockLength {
			return count, fmt.Errorf("%w: record %d has invalid block length %d", ErrCorruptCache, count, blockLength)
		}

		if _, err := io.ReadFull(r, prefix[8:16]); err != nil {
			return count, corruptOrIO(err, fmt.Sprintf("record %d timestamp", count))
		}
		timestamp := math.Float64frombits(byteOrder.Uint64(prefix[8:16]))
		payloadLen := blockLength - timestampSize

		if fn == nil {
			copied, err := io.CopyN(io.Discard, r, payloadLen)
			if err != nil {
				if copied < payloadLen && (err == io.EOF || err == io.ErrUnexpectedEOF) {
					return count, fmt.Errorf("%w: record %d payload truncated", ErrCorruptCache, count)
				}
				return count, fmt.Errorf("read record %d payload: %w", count, err)
			}
			count++
			continue
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return count, corruptOrIO(err, fmt.Sprintf("record %d payload", count))
		}
		if err := fn(Record{Timestamp: timestamp, Image: payload}); err != nil {
			return count, err
		}
		count++
	}
}

// corruptOrIO maps short reads to ErrCorruptCache and keeps other I/O errors
// distinct so a transient read failure does not destroy a good file.
func corruptOrIO(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorruptCache, what)
	}
	return fmt.Errorf("read %s: %w", what, err)
}
