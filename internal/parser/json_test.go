package parser

import (
	"testing"
)

func TestJSONParser_Parse(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantErr  bool
		expected map[string]string
	}{
		{
			name: "basic object",
			line: `{"timestamp":"2024-01-01T00:00:00Z","level":"INFO","message":"hi"}`,
			expected: map[string]string{
				"timestamp": "2024-01-01T00:00:00Z",
				"level":     "INFO",
				"message":   "hi",
			},
		},
		{
			name: "scalars become strings",
			line: `{"count":42,"ratio":0.5,"ok":true}`,
			expected: map[string]string{
				"count": "42",
				"ratio": "0.5",
				"ok":    "true",
			},
		},
		{
			name: "nested object keeps JSON text",
			line: `{"message":"x","meta":{"k":"v"}}`,
			expected: map[string]string{
				"message": "x",
				"meta":    `{"k":"v"}`,
			},
		},
		{
			name: "null becomes empty string",
			line: `{"a":null,"b":"x"}`,
			expected: map[string]string{
				"a": "",
				"b": "x",
			},
		},
		{
			name:    "array is not an object",
			line:    `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "truncated object",
			line:    `{"a":"b"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewJSONParser(Options{})
			if err != nil {
				t.Fatalf("failed to create parser: %v", err)
			}

			rec, err := p.Parse(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}

			for name, want := range tt.expected {
				if got := rec.GetField(name); got != want {
					t.Errorf("field %s: expected %q, got %q", name, want, got)
				}
			}
		})
	}
}

func TestJSONParser_FieldOrderFollowsDocument(t *testing.T) {
	p, err := NewJSONParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	rec, err := p.Parse(`{"zz":"1","aa":"2","mm":"3"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	names := rec.FieldNames()
	for i, want := range []string{"zz", "aa", "mm"} {
		if names[i] != want {
			t.Errorf("position %d: expected %s, got %s", i, want, names[i])
		}
	}
}

func TestJSONParser_TimestampFormat(t *testing.T) {
	p, err := NewJSONParser(Options{TimestampFormat: "2006-01-02 15:04:05"})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	rec, err := p.Parse(`{"timestamp":"2024-03-10 12:30:00"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if got := rec.GetField("timestamp"); got != "2024-03-10T12:30:00Z" {
		t.Errorf("expected normalized timestamp, got %q", got)
	}
}

func TestJSONParser_UnparseableTimestampKept(t *testing.T) {
	p, err := NewJSONParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	rec, err := p.Parse(`{"timestamp":"not a time"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if got := rec.GetField("timestamp"); got != "not a time" {
		t.Errorf("expected raw timestamp kept, got %q", got)
	}
}

func TestJSONParser_Validate(t *testing.T) {
	p, err := NewJSONParser(Options{})
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	tests := []struct {
		line string
		want bool
	}{
		{`{"a":"b"}`, true},
		{`  {"a":"b"}  `, true},
		{`[1,2]`, false},
		{`plain text`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := p.Validate(tt.line); got != tt.want {
			t.Errorf("Validate(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
