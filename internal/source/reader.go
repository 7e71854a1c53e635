package source

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ChunkedReader reads a file through a buffered reader, optionally routed
// through a decompression filter chosen by extension, and emits each
// non-empty line with its terminator stripped.
type ChunkedReader struct {
	path           string
	decompress     bool
	skippedTooLong atomic.Uint64
}

// NewChunkedReader creates a stream reader for the given path. The
// decompression filter is always chosen by extension; when force is set, a
// path without a recognised compression extension is an error.
func NewChunkedReader(path string, force bool) *ChunkedReader {
	return &ChunkedReader{path: path, decompress: force}
}

// ReadLines walks the file once, delivering lines in file order.
func (r *ChunkedReader) ReadLines(fn LineFunc) error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", r.path, err)
	}
	defer file.Close()

	reader, closer, err := r.wrapDecompression(file)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	return r.scan(reader, fn)
}

// SkippedTooLong reports how many over-length lines were dropped.
func (r *ChunkedReader) SkippedTooLong() uint64 {
	return r.skippedTooLong.Load()
}

// wrapDecompression selects the decompression filter by extension.
func (r *ChunkedReader) wrapDecompression(file *os.File) (io.Reader, io.Closer, error) {
	ext := compressionExt(r.path)
	if ext == "" {
		if r.decompress {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, r.path)
		}
		return file, nil, nil
	}

	switch ext {
	case "gz", "gzip":
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream %s: %w", r.path, err)
		}
		return gz, gz, nil
	case "bz2":
		return bzip2.NewReader(file), nil, nil
	case "z":
		zr, err := zlib.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zlib stream %s: %w", r.path, err)
		}
		return zr, zr, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, ext)
}

// scan splits the stream on newlines, dropping over-length lines without
// aborting the traversal.
func (r *ChunkedReader) scan(reader io.Reader, fn LineFunc) error {
	br := bufio.NewReaderSize(reader, readBufferSize)
	var line []byte

	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)

		if err == bufio.ErrBufferFull {
			if len(line) >= MaxLineLength {
				if err := r.discardRestOfLine(br); err != nil {
					return err
				}
				r.dropTooLong(len(line))
				line = line[:0]
			}
			continue
		}

		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read %s: %w", r.path, err)
		}

		if len(line) >= MaxLineLength {
			r.dropTooLong(len(line))
		} else if stripped := bytes.TrimRight(line, "\r\n"); len(stripped) > 0 {
			if cbErr := fn(stripped); cbErr != nil {
				return cbErr
			}
		}
		line = line[:0]

		if err == io.EOF {
			return nil
		}
	}
}

// discardRestOfLine consumes input up to and including the next newline.
func (r *ChunkedReader) discardRestOfLine(br *bufio.Reader) error {
	for {
		_, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read %s: %w", r.path, err)
		}
		return nil
	}
}

func (r *ChunkedReader) dropTooLong(length int) {
	r.skippedTooLong.Add(1)
	log.Printf("Skipping over-length line in %s (%d bytes)", r.path, length)
}
