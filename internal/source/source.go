// Package source produces raw log lines from a file. Two interchangeable
// strategies exist: a chunked stream reader that handles compressed input,
// and a memory-mapped scanner that hands out borrowed views into the
// mapping. Both deliver lines in strict file order in a single pass.
package source

import (
	"errors"
	"path/filepath"
	"strings"
)

// MaxLineLength bounds a single physical line. Longer segments are counted
// and dropped.
const MaxLineLength = 1024 * 1024

// readBufferSize is the internal buffer for chunked reads.
const readBufferSize = 64 * 1024

var (
	ErrUnsupportedCompression = errors.New("unsupported compression format")
	ErrUnsupportedEncoding    = errors.New("unsupported encoding")
)

// LineFunc receives one line without its terminator. The byte slice is only
// valid for the duration of the call; callers that keep the line must copy.
// Returning a non-nil error stops the traversal.
type LineFunc func(line []byte) error

// ErrStop can be returned from a LineFunc to stop the traversal early.
// Sources propagate it unchanged so callers can tell a clean stop from a
// failure.
var ErrStop = errors.New("stop line traversal")

// Source delivers the lines of a file to a callback, in file order, exactly
// once each.
type Source interface {
	ReadLines(fn LineFunc) error
	// SkippedTooLong reports how many over-length segments were dropped.
	SkippedTooLong() uint64
}

// ValidateEncoding checks the declared input encoding. Only single-byte
// ASCII-superset encodings are handled.
func ValidateEncoding(encoding string) error {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "ascii":
		return nil
	default:
		return ErrUnsupportedEncoding
	}
}

// compressionExt returns the recognised compression extension of a path,
// without the dot, or "" when the file is not compressed.
func compressionExt(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "gz", "gzip", "bz2", "z":
		return ext
	}
	return ""
}

// IsCompressed reports whether the path carries a recognised compression
// extension.
func IsCompressed(path string) bool {
	return compressionExt(path) != ""
}
