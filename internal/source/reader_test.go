package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func collectLines(t *testing.T, src Source) []string {
	t.Helper()
	var lines []string
	if err := src.ReadLines(func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	}); err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	return lines
}

func TestChunkedReader_PlainFile(t *testing.T) {
	path := writeFile(t, "plain.log", "one\ntwo\r\nthree\n\nfour")

	lines := collectLines(t, NewChunkedReader(path, false))

	expected := []string{"one", "two", "three", "four"}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d: %v", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}

func TestChunkedReader_PreservesLeadingWhitespace(t *testing.T) {
	path := writeFile(t, "indent.log", "head\n  continuation\n")

	lines := collectLines(t, NewChunkedReader(path, false))

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1] != "  continuation" {
		t.Errorf("leading whitespace lost: %q", lines[1])
	}
}

func TestChunkedReader_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.log.gz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	gz := gzip.NewWriter(file)
	if _, err := gz.Write([]byte("alpha\nbeta\n")); err != nil {
		t.Fatalf("failed to write gzip data: %v", err)
	}
	gz.Close()
	file.Close()

	lines := collectLines(t, NewChunkedReader(path, false))

	if len(lines) != 2 || lines[0] != "alpha" || lines[1] != "beta" {
		t.Errorf("unexpected gzip lines: %v", lines)
	}
}

func TestChunkedReader_Zlib(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.z")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	zw := zlib.NewWriter(file)
	if _, err := zw.Write([]byte("compressed line\n")); err != nil {
		t.Fatalf("failed to write zlib data: %v", err)
	}
	zw.Close()
	file.Close()

	lines := collectLines(t, NewChunkedReader(path, false))

	if len(lines) != 1 || lines[0] != "compressed line" {
		t.Errorf("unexpected zlib lines: %v", lines)
	}
}

func TestChunkedReader_ForcedDecompressUnknownExtension(t *testing.T) {
	path := writeFile(t, "plain.log", "data\n")

	err := NewChunkedReader(path, true).ReadLines(func([]byte) error { return nil })
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("expected ErrUnsupportedCompression, got %v", err)
	}
}

func TestChunkedReader_SkipsOverLengthLine(t *testing.T) {
	long := strings.Repeat("x", MaxLineLength+10)
	path := writeFile(t, "long.log", "before\n"+long+"\nafter\n")

	reader := NewChunkedReader(path, false)
	lines := collectLines(t, reader)

	if len(lines) != 2 || lines[0] != "before" || lines[1] != "after" {
		t.Fatalf("expected surrounding lines only, got %d lines", len(lines))
	}
	if reader.SkippedTooLong() != 1 {
		t.Errorf("expected 1 skipped line, got %d", reader.SkippedTooLong())
	}
}

func TestChunkedReader_MissingFile(t *testing.T) {
	err := NewChunkedReader("/nonexistent/file.log", false).ReadLines(func([]byte) error { return nil })
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChunkedReader_CallbackStops(t *testing.T) {
	path := writeFile(t, "stop.log", "a\nb\nc\n")

	var got []string
	err := NewChunkedReader(path, false).ReadLines(func(line []byte) error {
		got = append(got, string(line))
		if len(got) == 2 {
			return ErrStop
		}
		return nil
	})
	if err != ErrStop {
		t.Fatalf("expected ErrStop, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected traversal to stop after 2 lines, got %d", len(got))
	}
}

func TestValidateEncoding(t *testing.T) {
	tests := []struct {
		encoding string
		wantErr  bool
	}{
		{"utf-8", false},
		{"UTF-8", false},
		{"ascii", false},
		{"", false},
		{"latin-1", true},
		{"utf-16", true},
	}

	for _, tt := range tests {
		err := ValidateEncoding(tt.encoding)
		if tt.wantErr && !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("encoding %q: expected ErrUnsupportedEncoding, got %v", tt.encoding, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("encoding %q: unexpected error %v", tt.encoding, err)
		}
	}
}
