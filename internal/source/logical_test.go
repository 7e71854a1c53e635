package source

import (
	"testing"
)

func assemble(t *testing.T, lines []string) []string {
	t.Helper()

	var out []string
	a := NewAssembler(func(logical string) error {
		out = append(out, logical)
		return nil
	})
	for _, line := range lines {
		if err := a.Feed(line); err != nil {
			t.Fatalf("feed failed: %v", err)
		}
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	return out
}

func TestAssembler(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected []string
	}{
		{
			name:     "no continuations",
			lines:    []string{"one", "two", "three"},
			expected: []string{"one", "two", "three"},
		},
		{
			name:     "backslash and indentation continuations",
			lines:    []string{`line1 \`, "line2", "  line3", "nextrecord"},
			expected: []string{"line1 line2 line3", "nextrecord"},
		},
		{
			name:     "tab continuation",
			lines:    []string{"head", "\ttail"},
			expected: []string{"head tail"},
		},
		{
			name:     "blank line ends the pending record",
			lines:    []string{"first", "", "  not a continuation"},
			expected: []string{"first", "not a continuation"},
		},
		{
			name:     "leading blanks skipped",
			lines:    []string{"", "   ", "only"},
			expected: []string{"only"},
		},
		{
			name:     "backslash without following line",
			lines:    []string{`dangling \`},
			expected: []string{`dangling \`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := assemble(t, tt.lines)
			if len(out) != len(tt.expected) {
				t.Fatalf("expected %d logical lines, got %d: %v", len(tt.expected), len(out), out)
			}
			for i := range tt.expected {
				if out[i] != tt.expected[i] {
					t.Errorf("line %d: expected %q, got %q", i, tt.expected[i], out[i])
				}
			}
		})
	}
}

// Feeding the assembler its own continuation-free output must reproduce it.
func TestAssembler_Idempotent(t *testing.T) {
	first := assemble(t, []string{`a \`, "b", "  c", "d", "e"})
	second := assemble(t, first)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("line %d: %q vs %q", i, first[i], second[i])
		}
	}
}
