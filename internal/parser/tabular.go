package parser

import (
	"fmt"
	"strings"

	"github.com/cosmindanescu/logsieve/internal/record"
)

// TabularParser parses delimiter-separated lines (csv, tsv) into records.
// Column names come from the configured column list; positions past the end
// of the list get generated names.
type TabularParser struct {
	delimiter byte
	columns   []string
}

// NewTabularParser creates a tabular parser from the run options.
func NewTabularParser(opts Options) (*TabularParser, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = ","
	}
	if len(delim) != 1 {
		return nil, fmt.Errorf("tabular delimiter must be a single character, got %q", delim)
	}

	return &TabularParser{
		delimiter: delim[0],
		columns:   opts.ColumnNames,
	}, nil
}

// SetColumns installs column names parsed from a header line.
func (p *TabularParser) SetColumns(columns []string) {
	p.columns = columns
}

// Validate reports whether the line is worth parsing.
func (p *TabularParser) Validate(line string) bool {
	return strings.TrimSpace(line) != ""
}

// Parse splits the line into fields and maps them to column names.
//
// Quoting policy: an unquoted delimiter is a field boundary, a quoted
// delimiter is literal, a doubled quote inside a quoted field is an escaped
// quote, and an unterminated quote is a parse error.
func (p *TabularParser) Parse(line string) (*record.LogRecord, error) {
	fields, err := p.splitFields(line)
	if err != nil {
		return nil, err
	}

	rec := record.New()
	for i, value := range fields {
		rec.SetField(p.columnName(i), value)
	}
	return rec, nil
}

// ParseLine is equivalent to Parse for this parser.
func (p *TabularParser) ParseLine(line string) (*record.LogRecord, error) {
	return p.Parse(line)
}

func (p *TabularParser) columnName(i int) string {
	if i < len(p.columns) && p.columns[i] != "" {
		return p.columns[i]
	}
	return fmt.Sprintf("column_%d", i+1)
}

func (p *TabularParser) splitFields(line string) ([]string, error) {
	var fields []string
	var field strings.Builder
	inQuote := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote && c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				// Escaped quote inside a quoted field
				field.WriteByte('"')
				i++
			} else {
				inQuote = false
			}
		case inQuote:
			field.WriteByte(c)
		case c == '"':
			inQuote = true
		case c == p.delimiter:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}

	if inQuote {
		return nil, ErrUnterminatedQuote
	}

	fields = append(fields, field.String())
	return fields, nil
}

// SplitHeader splits a header line with the same quoting policy and trims
// surrounding whitespace from each name.
func (p *TabularParser) SplitHeader(line string) ([]string, error) {
	fields, err := p.splitFields(line)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}
