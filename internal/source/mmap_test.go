package source

import (
	"errors"
	"strings"
	"testing"
)

func TestMmapScanner_LinesInOrder(t *testing.T) {
	path := writeFile(t, "scan.log", "first\nsecond\nthird\n")

	lines := collectLines(t, NewMmapScanner(path))

	expected := []string{"first", "second", "third"}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d", len(expected), len(lines))
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}

func TestMmapScanner_SkipsEmptySegments(t *testing.T) {
	path := writeFile(t, "gaps.log", "a\n\n\nb\n")

	lines := collectLines(t, NewMmapScanner(path))

	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Errorf("expected empty segments skipped, got %v", lines)
	}
}

func TestMmapScanner_NoTrailingNewline(t *testing.T) {
	path := writeFile(t, "tail.log", "a\nlast")

	lines := collectLines(t, NewMmapScanner(path))

	if len(lines) != 2 || lines[1] != "last" {
		t.Errorf("expected final unterminated line delivered, got %v", lines)
	}
}

func TestMmapScanner_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.log", "")

	lines := collectLines(t, NewMmapScanner(path))
	if len(lines) != 0 {
		t.Errorf("expected no lines from empty file, got %v", lines)
	}
}

// An over-length segment is dropped with the surrounding lines intact.
func TestMmapScanner_SkipsOverLengthSegment(t *testing.T) {
	long := strings.Repeat("y", MaxLineLength+1)
	path := writeFile(t, "long.log", "before\n"+long+"\nafter\n")

	scanner := NewMmapScanner(path)
	lines := collectLines(t, scanner)

	if len(lines) != 2 || lines[0] != "before" || lines[1] != "after" {
		t.Fatalf("expected surrounding lines only, got %d lines", len(lines))
	}
	if scanner.SkippedTooLong() != 1 {
		t.Errorf("expected 1 skipped segment, got %d", scanner.SkippedTooLong())
	}
}

func TestMmapScanner_RejectsCompressedInput(t *testing.T) {
	path := writeFile(t, "data.gz", "not really gzip")

	err := NewMmapScanner(path).ReadLines(func([]byte) error { return nil })
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("expected ErrUnsupportedCompression, got %v", err)
	}
}

func TestMmapScanner_MissingFile(t *testing.T) {
	err := NewMmapScanner("/nonexistent/file.log").ReadLines(func([]byte) error { return nil })
	if err == nil {
		t.Error("expected error for missing file")
	}
}
