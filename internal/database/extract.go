package database

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ExtractAttributes creates a table with one row per input line: the line
// number, the original line, and one column per named pattern holding the
// first capture group of that pattern, NULL when the pattern does not
// match. Columns appear in sorted name order so the schema is stable.
func (m *Materializer) ExtractAttributes(lines []string, patterns map[string]string, tableName string) error {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make(map[string]*regexp.Regexp, len(patterns))
	for name, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid extraction pattern %q for %s: %w", pattern, name, err)
		}
		compiled[name] = re
	}

	var create strings.Builder
	create.WriteString("CREATE TABLE " + tableName + " (line_number INTEGER, original_line TEXT")
	for _, name := range names {
		create.WriteString(", " + name + " TEXT")
	}
	create.WriteString(")")

	if _, err := m.db.Exec(create.String()); err != nil {
		return fmt.Errorf("failed to create attribute table %s: %w", tableName, err)
	}

	insertBase := "INSERT INTO " + tableName + " VALUES "
	batch := make([]string, 0, insertBatchSize)

	for i, line := range lines {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("(%d, %s", i, quoteSQL(line)))

		for _, name := range names {
			match := compiled[name].FindStringSubmatch(line)
			if len(match) > 1 {
				row.WriteString(", " + quoteSQL(match[1]))
			} else {
				row.WriteString(", NULL")
			}
		}
		row.WriteString(")")
		batch = append(batch, row.String())

		if len(batch) >= insertBatchSize || i == len(lines)-1 {
			if _, err := m.db.Exec(insertBase + strings.Join(batch, ", ")); err != nil {
				return fmt.Errorf("failed to insert extracted attributes into %s: %w", tableName, err)
			}
			batch = batch[:0]
		}
	}

	return nil
}
