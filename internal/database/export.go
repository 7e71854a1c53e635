package database

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
)

// ExportCSV writes a table to a CSV file with a header row. The emitted
// statement is COPY <table> TO '<path>' (HEADER, DELIMITER ','); embedded
// stores without COPY support get the equivalent SELECT-and-write.
func (m *Materializer) ExportCSV(tableName, outputPath string) error {
	stmt := "COPY " + tableName + " TO '" + outputPath + "' (HEADER, DELIMITER ',')"
	if _, err := m.db.Exec(stmt); err == nil {
		return nil
	}

	return m.exportCSVFallback(tableName, outputPath)
}

func (m *Materializer) exportCSVFallback(tableName, outputPath string) error {
	rows, err := m.db.Query("SELECT * FROM " + tableName)
	if err != nil {
		return fmt.Errorf("failed to read table %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", tableName, err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create export file %s: %w", outputPath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	values := make([]sql.NullString, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}

		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s: %w", tableName, err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}

	log.Printf("Exported %d rows from %s to %s", count, tableName, outputPath)
	return nil
}
