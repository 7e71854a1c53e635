package source

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"
)

// MmapScanner maps a file read-only and scans it for newlines, handing out
// borrowed views into the mapping. Views are only valid within the callback;
// the mapping is released when ReadLines returns. Compressed inputs are not
// supported on this path.
type MmapScanner struct {
	path           string
	skippedTooLong atomic.Uint64
}

// NewMmapScanner creates a memory-mapped scanner for the given path.
func NewMmapScanner(path string) *MmapScanner {
	return &MmapScanner{path: path}
}

// ReadLines scans the mapping sequentially, delivering each segment of
// length > 0 and < MaxLineLength. Over-length segments are dropped with a
// warning.
func (s *MmapScanner) ReadLines(fn LineFunc) error {
	if IsCompressed(s.path) {
		return fmt.Errorf("%w: memory mapping does not support compressed input", ErrUnsupportedCompression)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", s.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", s.path, err)
	}
	if info.Size() == 0 {
		return nil
	}

	mapped, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to map file %s: %w", s.path, err)
	}
	defer func() {
		if err := mapped.Unmap(); err != nil {
			log.Printf("Warning: failed to unmap %s: %v", s.path, err)
		}
	}()

	log.Printf("Scanning memory-mapped file %s (%d bytes)", s.path, info.Size())

	data := []byte(mapped)
	lineCount := 0
	for start := 0; start < len(data); {
		end := bytes.IndexByte(data[start:], '\n')
		if end < 0 {
			end = len(data)
		} else {
			end += start
		}

		length := end - start
		if length >= MaxLineLength {
			s.skippedTooLong.Add(1)
			log.Printf("Skipping line %d in %s: too long (%d bytes)", lineCount, s.path, length)
		} else if length > 0 {
			if err := fn(data[start:end]); err != nil {
				return err
			}
			lineCount++
		}

		start = end + 1
	}

	log.Printf("Finished scanning %d lines from %s", lineCount, s.path)
	return nil
}

// SkippedTooLong reports how many over-length segments were dropped.
func (s *MmapScanner) SkippedTooLong() uint64 {
	return s.skippedTooLong.Load()
}
