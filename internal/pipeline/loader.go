package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cosmindanescu/logsieve/internal/config"
	"github.com/cosmindanescu/logsieve/internal/parser"
	"github.com/cosmindanescu/logsieve/internal/preprocess"
	"github.com/cosmindanescu/logsieve/internal/record"
	"github.com/cosmindanescu/logsieve/internal/source"
)

// pressureSleep is how long the producer pauses when the input queue is
// above the high watermark.
const pressureSleep = 50 * time.Millisecond

// Loader runs the ingestion pipeline: one producer reading the file, a
// worker pool parsing batches, and one consumer collecting results. The
// producer adapts its batch size to the input-queue depth between the
// configured watermarks.
type Loader struct {
	ingest config.IngestConfig
	pcfg   config.PipelineConfig
	pre    *preprocess.Preprocessor

	// Set by the producer before the first batch is pushed; read by
	// workers after their first pop, so the queue orders the accesses.
	headerColumns []string

	running          atomic.Bool
	currentBatchSize atomic.Int64
	memoryPressure   atomic.Bool
	processedLines   atomic.Uint64
	failedLines      atomic.Uint64
	totalBatches     atomic.Uint64
	skippedTooLong   atomic.Uint64

	// OnBatch, when set, is called by the consumer as each processed
	// batch arrives. Used for progress streaming.
	OnBatch func(id uint64, records int)
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Running          bool   `json:"running"`
	ProcessedLines   uint64 `json:"processed_lines"`
	FailedLines      uint64 `json:"failed_lines"`
	SkippedTooLong   uint64 `json:"skipped_too_long"`
	TotalBatches     uint64 `json:"total_batches"`
	CurrentBatchSize int64  `json:"current_batch_size"`
	MemoryPressure   bool   `json:"memory_pressure"`
}

// NewLoader validates the configuration and creates a loader. The parser
// configuration is probed here so misconfiguration (bad pattern, bad
// delimiter) fails before any thread is spawned.
func NewLoader(cfg *config.Config) (*Loader, error) {
	if err := source.ValidateEncoding(cfg.Ingest.Encoding); err != nil {
		return nil, fmt.Errorf("%w: %s", err, cfg.Ingest.Encoding)
	}

	l := &Loader{
		ingest: cfg.Ingest,
		pcfg:   cfg.Pipeline,
	}
	l.currentBatchSize.Store(int64(cfg.Pipeline.InitialBatchSize))

	if cfg.Ingest.EnablePreprocessing {
		pre, err := preprocess.FromIngestConfig(cfg.Ingest)
		if err != nil {
			return nil, fmt.Errorf("failed to build preprocessor: %w", err)
		}
		l.pre = pre
	}

	if _, err := parser.New(parser.OptionsFromConfig(cfg.Ingest)); err != nil {
		return nil, fmt.Errorf("invalid parser configuration: %w", err)
	}

	return l, nil
}

// LoadData reads the configured file through the full pipeline and returns
// the parsed records. Record order across batches is arrival order, which
// for more than one worker is not file order; batch ids allow callers to
// sort when they need to.
func (l *Loader) LoadData(ctx context.Context) ([]*record.LogRecord, error) {
	if _, err := os.Stat(l.ingest.FilePath); err != nil {
		return nil, fmt.Errorf("input file not accessible: %w", err)
	}

	l.running.Store(true)
	defer l.running.Store(false)

	src, err := l.newSource()
	if err != nil {
		return nil, err
	}

	input := NewQueue[LogBatch]()
	output := NewQueue[ProcessedBatch]()

	prodErr := make(chan error, 1)
	go func() {
		prodErr <- l.runProducer(ctx, src, input)
	}()

	var workers sync.WaitGroup
	for i := 0; i < l.numThreads(); i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			l.runWorker(id, input, output)
		}(i)
	}

	var results []*record.LogRecord
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			batch, ok := output.WaitAndPop()
			if !ok {
				return
			}
			results = append(results, batch.Records...)
			if l.OnBatch != nil {
				l.OnBatch(batch.ID, len(batch.Records))
			}
		}
	}()

	err = <-prodErr
	workers.Wait()
	output.Done()
	<-consumerDone

	l.skippedTooLong.Store(src.SkippedTooLong())

	if err != nil {
		return results, err
	}
	return results, nil
}

// FilePath returns the configured input file path.
func (l *Loader) FilePath() string {
	return l.ingest.FilePath
}

// Stats returns a snapshot of the pipeline counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Running:          l.running.Load(),
		ProcessedLines:   l.processedLines.Load(),
		FailedLines:      l.failedLines.Load(),
		SkippedTooLong:   l.skippedTooLong.Load(),
		TotalBatches:     l.totalBatches.Load(),
		CurrentBatchSize: l.currentBatchSize.Load(),
		MemoryPressure:   l.memoryPressure.Load(),
	}
}

func (l *Loader) numThreads() int {
	if l.pcfg.NumThreads > 0 {
		return l.pcfg.NumThreads
	}
	return hardwareConcurrency()
}

func (l *Loader) newSource() (source.Source, error) {
	if l.ingest.UseMemoryMapping {
		return source.NewMmapScanner(l.ingest.FilePath), nil
	}
	return source.NewChunkedReader(l.ingest.FilePath, l.ingest.Decompress), nil
}

// newParser builds a worker-local parser. Header-derived column names are
// applied when the configuration does not name columns explicitly.
func (l *Loader) newParser() (parser.Parser, error) {
	opts := parser.OptionsFromConfig(l.ingest)
	if len(opts.ColumnNames) == 0 && len(l.headerColumns) > 0 {
		opts.ColumnNames = l.headerColumns
	}
	return parser.New(opts)
}

// runProducer walks the source, assembles logical lines when configured,
// and pushes batches. It always marks the input queue done on return.
func (l *Loader) runProducer(ctx context.Context, src source.Source, input *Queue[LogBatch]) error {
	defer input.Done()

	batchLines := make([]string, 0, l.currentBatchSize.Load())
	var batchID uint64
	linesRead := 0
	headerSkipped := false

	emit := func(logical string) error {
		batchLines = append(batchLines, logical)
		if int64(len(batchLines)) < l.currentBatchSize.Load() {
			return nil
		}

		input.Push(LogBatch{ID: batchID, Lines: batchLines})
		batchID++
		l.totalBatches.Store(batchID)
		batchLines = make([]string, 0, l.currentBatchSize.Load())

		l.adjustBatchSize(input)
		if l.memoryPressure.Load() && input.Size() > l.pcfg.QueueHighWatermark {
			time.Sleep(pressureSleep)
		}
		return nil
	}

	var assembler *source.Assembler
	if l.ingest.LogicalLines {
		assembler = source.NewAssembler(emit)
	}

	err := src.ReadLines(func(raw []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Owned copy: mmap views are only valid within this callback
		line := string(raw)

		if l.ingest.HasHeader && !headerSkipped {
			headerSkipped = true
			l.captureHeader(line)
			return nil
		}

		linesRead++
		if linesRead%10000 == 0 {
			log.Printf("Read %d lines from %s", linesRead, l.ingest.FilePath)
		}

		if assembler != nil {
			return assembler.Feed(line)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		return emit(trimmed)
	})

	if assembler != nil && err == nil {
		err = assembler.Flush()
	}

	if len(batchLines) > 0 {
		input.Push(LogBatch{ID: batchID, Lines: batchLines})
		batchID++
		l.totalBatches.Store(batchID)
	}

	if err != nil {
		return fmt.Errorf("producer failed: %w", err)
	}
	return nil
}

// captureHeader records header-derived column names for tabular input.
func (l *Loader) captureHeader(line string) {
	if l.ingest.LogType != "csv" && l.ingest.LogType != "tsv" {
		return
	}
	if len(l.ingest.ColumnNames) > 0 {
		return
	}

	opts := parser.OptionsFromConfig(l.ingest)
	if l.ingest.LogType == "tsv" {
		opts.Delimiter = "\t"
	}
	tab, err := parser.NewTabularParser(opts)
	if err != nil {
		return
	}
	columns, err := tab.SplitHeader(line)
	if err != nil {
		log.Printf("Warning: failed to parse header line: %v", err)
		return
	}
	l.headerColumns = columns
}

// runWorker pops batches, parses them with a worker-local parser, and
// pushes the processed batches. The parser is created after the first pop
// so header-derived columns are visible.
func (l *Loader) runWorker(id int, input *Queue[LogBatch], output *Queue[ProcessedBatch]) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d fault: %v", id, r)
		}
	}()

	var p parser.Parser
	errCount := 0

	for {
		batch, ok := input.WaitAndPop()
		if !ok {
			break
		}

		if p == nil {
			var err error
			p, err = l.newParser()
			if err != nil {
				log.Printf("Worker %d: failed to create parser: %v", id, err)
				return
			}
		}

		output.Push(l.processBatch(p, batch, &errCount))
	}
}

func (l *Loader) processBatch(p parser.Parser, batch LogBatch, errCount *int) ProcessedBatch {
	lines := batch.Lines
	if l.pre != nil {
		lines, _ = l.pre.CleanBatch(lines)
	}

	processed := ProcessedBatch{
		ID:      batch.ID,
		Records: make([]*record.LogRecord, 0, len(lines)),
	}

	success, failed := 0, 0
	for _, line := range lines {
		if !p.Validate(line) {
			failed++
			continue
		}

		rec, err := p.ParseLine(line)
		if err != nil {
			failed++
			l.logParseError(err, line, errCount)
			continue
		}

		processed.Records = append(processed.Records, rec)
		success++
	}

	l.processedLines.Add(uint64(success))
	l.failedLines.Add(uint64(failed))

	if batch.ID%10 == 0 || failed > 0 {
		log.Printf("Processed batch %d: %d successes, %d errors", batch.ID, success, failed)
	}

	return processed
}

// logParseError logs the first few parse failures in detail and then goes
// quiet so a malformed file cannot flood the log.
func (l *Loader) logParseError(err error, line string, errCount *int) {
	*errCount++
	switch {
	case *errCount < 10:
		log.Printf("Error parsing line: %v", err)
		if len(line) <= 200 {
			log.Printf("Line content: %s", line)
		} else {
			log.Printf("Line too long to display (%d chars)", len(line))
		}
	case *errCount == 10:
		log.Printf("Too many parsing errors, suppressing further messages")
	}
}

// adjustBatchSize grows the batch size 25% when the input queue runs low
// and shrinks it 25% under memory pressure, within the configured bounds.
func (l *Loader) adjustBatchSize(input *Queue[LogBatch]) {
	size := input.Size()
	cur := l.currentBatchSize.Load()

	switch {
	case size < l.pcfg.QueueLowWatermark:
		grown := cur + max(cur/4, 1)
		if grown > int64(l.pcfg.MaxBatchSize) {
			grown = int64(l.pcfg.MaxBatchSize)
		}
		l.currentBatchSize.Store(grown)
	case size > l.pcfg.QueueHighWatermark:
		shrunk := cur - cur/4
		if shrunk < int64(l.pcfg.MinBatchSize) {
			shrunk = int64(l.pcfg.MinBatchSize)
		}
		if !l.memoryPressure.Swap(true) {
			log.Printf("Memory pressure: input queue at %d, shrinking batch size to %d", size, shrunk)
		}
		l.currentBatchSize.Store(shrunk)
	default:
		l.memoryPressure.Store(false)
	}
}
