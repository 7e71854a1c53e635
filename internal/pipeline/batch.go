package pipeline

import (
	"github.com/cosmindanescu/logsieve/internal/record"
)

// LogBatch is the unit of transfer from the producer to the workers. Batch
// ids are assigned monotonically; within a batch, line order equals file
// order.
type LogBatch struct {
	ID    uint64
	Lines []string
}

// ProcessedBatch carries the parsed records of one LogBatch from a worker
// to the consumer. Records preserve the order of the parseable lines in the
// originating batch.
type ProcessedBatch struct {
	ID      uint64
	Records []*record.LogRecord
}
