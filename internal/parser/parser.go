package parser

import (
	"errors"

	"github.com/cosmindanescu/logsieve/internal/config"
	"github.com/cosmindanescu/logsieve/internal/record"
)

// Parser errors
var (
	ErrUnterminatedQuote = errors.New("unterminated quote in field")
	ErrNoMatch           = errors.New("line does not match pattern")
	ErrNotObject         = errors.New("line is not a JSON object")
)

// Parser converts one logical line into a structured log record.
//
// Validate is a cheap structural check; a false result means the line is
// skipped without error. Parse fails on malformed input; failures are counted
// by the pipeline, never propagated. A Parser instance is used by a single
// worker; workers construct their own through New.
type Parser interface {
	Validate(line string) bool
	Parse(line string) (*record.LogRecord, error)
	// ParseLine is the convenience form of Parse followed by record
	// conversion; parsers here produce records directly so the two agree.
	ParseLine(line string) (*record.LogRecord, error)
}

// Options carries the per-run parser settings derived from configuration.
type Options struct {
	LogType         string
	LogPattern      string
	Delimiter       string
	ColumnNames     []string
	TimestampFormat string
}

// OptionsFromConfig builds parser options from the ingest configuration.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{
		LogType:         cfg.LogType,
		LogPattern:      cfg.LogPattern,
		Delimiter:       cfg.Delimiter,
		ColumnNames:     cfg.ColumnNames,
		TimestampFormat: cfg.TimestampFormat,
	}
}

// New creates a parser for the configured log type. csv and tsv select the
// tabular parser, json the object parser, drain the template miner; any
// other value falls back to the regex parser compiled from LogPattern.
func New(opts Options) (Parser, error) {
	switch opts.LogType {
	case "csv":
		return NewTabularParser(opts)
	case "tsv":
		tsv := opts
		tsv.Delimiter = "\t"
		return NewTabularParser(tsv)
	case "json":
		return NewJSONParser(opts)
	case "drain":
		return NewDrainParser(opts)
	default:
		return NewRegexParser(opts)
	}
}
