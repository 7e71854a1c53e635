package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cosmindanescu/logsieve/internal/record"
)

// JSONParser parses one JSON object per line. The object is flattened one
// level: scalars become strings, nested objects and arrays are kept as their
// JSON text. Field order follows the document order of the object keys.
type JSONParser struct {
	timestampFormat string
}

// NewJSONParser creates a JSON line parser from the run options.
func NewJSONParser(opts Options) (*JSONParser, error) {
	format := opts.TimestampFormat
	if format == "" {
		format = time.RFC3339
	}
	return &JSONParser{timestampFormat: format}, nil
}

// Validate reports whether the line looks like a JSON object.
func (p *JSONParser) Validate(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}

// Parse decodes the object, walking keys in document order.
func (p *JSONParser) Parse(line string) (*record.LogRecord, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON line: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	rec := record.New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, ErrNotObject
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON value for %q: %w", key, err)
		}

		rec.SetField(key, rawToString(raw))
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON line: %w", err)
	}

	p.normalizeTimestamp(rec)
	return rec, nil
}

// ParseLine is equivalent to Parse for this parser.
func (p *JSONParser) ParseLine(line string) (*record.LogRecord, error) {
	return p.Parse(line)
}

// normalizeTimestamp reformats a recognised timestamp field to RFC 3339.
// Unparseable values are kept verbatim.
func (p *JSONParser) normalizeTimestamp(rec *record.LogRecord) {
	if !rec.HasField("timestamp") {
		return
	}
	raw := rec.GetField("timestamp")
	ts, err := time.Parse(p.timestampFormat, raw)
	if err != nil {
		return
	}
	rec.SetField("timestamp", ts.Format(time.RFC3339))
}

func rawToString(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	switch text[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return text
	case '{', '[':
		// Nested structures stay as their JSON text
		return text
	default:
		// Numbers and booleans keep their literal form
		return text
	}
}
