package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/cosmindanescu/logsieve/internal/parser"
	"github.com/cosmindanescu/logsieve/internal/record"
	"github.com/cosmindanescu/logsieve/internal/source"
)

func hardwareConcurrency() int {
	return runtime.NumCPU()
}

// ReadLogs reads the configured file sequentially on the calling goroutine
// and returns the parsed records in file order.
func (l *Loader) ReadLogs() ([]*record.LogRecord, error) {
	var records []*record.LogRecord
	err := l.forEachRecord(context.Background(), func(rec *record.LogRecord) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Stream delivers records to fn in file order as they parse. Returning
// false from fn stops the traversal without error.
func (l *Loader) Stream(ctx context.Context, fn func(*record.LogRecord) bool) error {
	return l.forEachRecord(ctx, func(rec *record.LogRecord) error {
		if !fn(rec) {
			return source.ErrStop
		}
		return nil
	})
}

// ProcessInChunks delivers records in chunks of at most chunkSize, in file
// order. The final partial chunk is delivered too.
func (l *Loader) ProcessInChunks(ctx context.Context, chunkSize int, fn func([]*record.LogRecord) error) error {
	if chunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}

	chunk := make([]*record.LogRecord, 0, chunkSize)
	err := l.forEachRecord(ctx, func(rec *record.LogRecord) error {
		chunk = append(chunk, rec)
		if len(chunk) >= chunkSize {
			if err := fn(chunk); err != nil {
				return err
			}
			chunk = make([]*record.LogRecord, 0, chunkSize)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(chunk) > 0 {
		return fn(chunk)
	}
	return nil
}

// forEachRecord is the single-goroutine walk shared by the sequential
// entry points: header handling, logical-line assembly, preprocessing, and
// parsing all happen inline.
func (l *Loader) forEachRecord(ctx context.Context, fn func(*record.LogRecord) error) error {
	if _, err := os.Stat(l.ingest.FilePath); err != nil {
		return fmt.Errorf("input file not accessible: %w", err)
	}

	src, err := l.newSource()
	if err != nil {
		return err
	}

	var p parser.Parser
	errCount := 0
	headerSkipped := false

	handleLogical := func(logical string) error {
		if l.pre != nil {
			logical, _ = l.pre.CleanLine(logical)
		}

		if p == nil {
			var err error
			p, err = l.newParser()
			if err != nil {
				return fmt.Errorf("failed to create parser: %w", err)
			}
		}

		if !p.Validate(logical) {
			l.failedLines.Add(1)
			return nil
		}

		rec, err := p.ParseLine(logical)
		if err != nil {
			l.failedLines.Add(1)
			l.logParseError(err, logical, &errCount)
			return nil
		}

		l.processedLines.Add(1)
		return fn(rec)
	}

	var assembler *source.Assembler
	if l.ingest.LogicalLines {
		assembler = source.NewAssembler(handleLogical)
	}

	err = src.ReadLines(func(raw []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := string(raw)

		if l.ingest.HasHeader && !headerSkipped {
			headerSkipped = true
			l.captureHeader(line)
			return nil
		}

		if assembler != nil {
			return assembler.Feed(line)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		return handleLogical(trimmed)
	})

	if assembler != nil && err == nil {
		err = assembler.Flush()
	}

	l.skippedTooLong.Store(src.SkippedTooLong())

	if err == source.ErrStop {
		return nil
	}
	if err != nil {
		log.Printf("Sequential read of %s failed: %v", l.ingest.FilePath, err)
		return err
	}
	return nil
}
