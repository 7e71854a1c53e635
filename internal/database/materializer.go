package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cosmindanescu/logsieve/internal/pipeline"
	"github.com/cosmindanescu/logsieve/internal/record"
)

// insertBatchSize is how many rows go into one multi-valued INSERT.
const insertBatchSize = 1000

// Materializer turns parsed log records into tables in the analytical
// store. The table schema is inferred from the first record of a load; all
// values are stored as TEXT and downstream users cast as needed.
type Materializer struct {
	db *DB
}

// NewMaterializer creates a materializer over an open store connection.
func NewMaterializer(db *DB) *Materializer {
	return &Materializer{db: db}
}

// ChunkingOptions controls the large-file load strategy.
type ChunkingOptions struct {
	MemoryLimitMB int64
	ChunkSize     int
	ForceChunking bool
}

// CreateTableFromRecords infers a schema from the first record and bulk
// inserts all records into a new table. Fields present only in later
// records are not part of the schema and are dropped.
func (m *Materializer) CreateTableFromRecords(records []*record.LogRecord, tableName string) error {
	if len(records) == 0 {
		return fmt.Errorf("no records to create table %s from", tableName)
	}

	columns := inferColumns(records[0])

	var create strings.Builder
	create.WriteString("CREATE TABLE " + tableName + " (id INTEGER")
	for _, col := range columns {
		create.WriteString(", " + col + " TEXT")
	}
	create.WriteString(")")

	if _, err := m.db.Exec(create.String()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return m.insertRecords(records, tableName, columns)
}

// insertRecords bulk inserts records in multi-valued statements of
// insertBatchSize rows. Row ids are the record positions.
func (m *Materializer) insertRecords(records []*record.LogRecord, tableName string, columns []string) error {
	insertBase := "INSERT INTO " + tableName + " VALUES "
	batch := make([]string, 0, insertBatchSize)

	for i, rec := range records {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("(%d", i))
		for _, col := range columns {
			if rec.HasField(col) {
				row.WriteString(", " + quoteSQL(rec.GetField(col)))
			} else {
				row.WriteString(", NULL")
			}
		}
		row.WriteString(")")
		batch = append(batch, row.String())

		if len(batch) >= insertBatchSize || i == len(records)-1 {
			if _, err := m.db.Exec(insertBase + strings.Join(batch, ", ")); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", tableName, err)
			}
			batch = batch[:0]
		}
	}

	return nil
}

// LoadFile loads a log file into a table, choosing between a single-pass
// load and a chunked load by comparing the file size with the memory limit.
//
// The chunked path parses the file in ChunkSize-line chunks, loads each
// chunk into <table>_temp_<i>, composes the final table with UNION ALL, and
// drops the temporaries.
func (m *Materializer) LoadFile(ctx context.Context, loader *pipeline.Loader, tableName string, opts ChunkingOptions) error {
	filePath := loader.FilePath()

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}

	fileSizeMB := info.Size() / (1024 * 1024)
	log.Printf("Loading %s into %s (size: %d MB, memory limit: %d MB)",
		filePath, tableName, fileSizeMB, opts.MemoryLimitMB)

	if fileSizeMB <= opts.MemoryLimitMB && !opts.ForceChunking {
		records, err := loader.ReadLogs()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filePath, err)
		}
		return m.CreateTableFromRecords(records, tableName)
	}

	log.Printf("Processing %s in chunks of %d lines", filePath, opts.ChunkSize)

	var batchTables []string
	err = loader.ProcessInChunks(ctx, opts.ChunkSize, func(chunk []*record.LogRecord) error {
		batchTable := fmt.Sprintf("%s_temp_%d", tableName, len(batchTables))
		if err := m.CreateTableFromRecords(chunk, batchTable); err != nil {
			return fmt.Errorf("failed to create batch table %s: %w", batchTable, err)
		}
		batchTables = append(batchTables, batchTable)
		log.Printf("Created batch table %s (%d records)", batchTable, len(chunk))
		return nil
	})
	if err != nil {
		return err
	}

	if len(batchTables) == 0 {
		return fmt.Errorf("no batch tables were created for %s", tableName)
	}

	var union strings.Builder
	union.WriteString("CREATE TABLE " + tableName + " AS ")
	for i, batchTable := range batchTables {
		if i > 0 {
			union.WriteString(" UNION ALL ")
		}
		union.WriteString("SELECT * FROM " + batchTable)
	}

	if _, err := m.db.Exec(union.String()); err != nil {
		return fmt.Errorf("failed to create union table %s: %w", tableName, err)
	}

	for _, batchTable := range batchTables {
		if _, err := m.db.Exec("DROP TABLE " + batchTable); err != nil {
			log.Printf("Warning: failed to drop batch table %s: %v", batchTable, err)
		}
	}

	log.Printf("Loaded %s in %d chunks", tableName, len(batchTables))
	return nil
}

// RowCount returns the number of rows in a table.
func (m *Materializer) RowCount(tableName string) (int64, error) {
	var count int64
	err := m.db.QueryRow("SELECT COUNT(*) FROM " + tableName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", tableName, err)
	}
	return count, nil
}

// inferColumns orders the first record's fields for the schema: the
// conventional timestamp/level/message fields first when present, then the
// remaining fields in insertion order.
func inferColumns(first *record.LogRecord) []string {
	var columns []string
	for _, common := range []string{"timestamp", "level", "message"} {
		if first.HasField(common) {
			columns = append(columns, common)
		}
	}
	for _, name := range first.FieldNames() {
		if name == "timestamp" || name == "level" || name == "message" {
			continue
		}
		columns = append(columns, name)
	}
	return columns
}

// quoteSQL single-quotes a literal, doubling embedded quotes.
func quoteSQL(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
