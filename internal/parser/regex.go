package parser

import (
	"fmt"
	"regexp"

	"github.com/cosmindanescu/logsieve/internal/record"
)

// RegexParser parses lines with a configured pattern. Named capture groups
// become field names; unnamed groups fall back to g1, g2, and so on.
type RegexParser struct {
	pattern *regexp.Regexp
	names   []string
}

// NewRegexParser compiles the configured pattern once.
func NewRegexParser(opts Options) (*RegexParser, error) {
	if opts.LogPattern == "" {
		return nil, fmt.Errorf("regex parser requires a log pattern")
	}

	pattern, err := regexp.Compile(opts.LogPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile log pattern: %w", err)
	}

	names := make([]string, len(pattern.SubexpNames()))
	for i, name := range pattern.SubexpNames() {
		if i == 0 {
			continue
		}
		if name == "" {
			name = fmt.Sprintf("g%d", i)
		}
		names[i] = name
	}

	return &RegexParser{pattern: pattern, names: names}, nil
}

// Validate reports whether the line matches the pattern.
func (p *RegexParser) Validate(line string) bool {
	return p.pattern.MatchString(line)
}

// Parse extracts the capture groups into a record.
func (p *RegexParser) Parse(line string) (*record.LogRecord, error) {
	matches := p.pattern.FindStringSubmatch(line)
	if matches == nil {
		return nil, ErrNoMatch
	}

	rec := record.New()
	for i := 1; i < len(matches); i++ {
		rec.SetField(p.names[i], matches[i])
	}
	return rec, nil
}

// ParseLine is equivalent to Parse for this parser.
func (p *RegexParser) ParseLine(line string) (*record.LogRecord, error) {
	return p.Parse(line)
}
