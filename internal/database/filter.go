package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedOperator is returned for a filter operator outside the
// alias table.
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

// FilterColumns creates a new table projecting the given columns from the
// input table. An empty column list selects everything.
func (m *Materializer) FilterColumns(inputTable, outputTable string, columns []string) error {
	columnList := "*"
	if len(columns) > 0 {
		columnList = strings.Join(columns, ", ")
	}

	sql := "CREATE TABLE " + outputTable + " AS SELECT " + columnList + " FROM " + inputTable
	if _, err := m.db.Exec(sql); err != nil {
		return fmt.Errorf("failed to filter %s into %s: %w", inputTable, outputTable, err)
	}
	return nil
}

// FilterRows creates a new table selecting the rows of the input table
// where column <op> value holds. Operator aliases: eq/==, neq/!=, gt/>,
// lt/<, gte/>=, lte/<=, like, and contains (LIKE with the value wrapped in
// percent signs).
func (m *Materializer) FilterRows(inputTable, outputTable, column, op, value string) error {
	var operator string
	switch op {
	case "eq", "==":
		operator = "="
	case "neq", "!=":
		operator = "!="
	case "gt", ">":
		operator = ">"
	case "lt", "<":
		operator = "<"
	case "gte", ">=":
		operator = ">="
	case "lte", "<=":
		operator = "<="
	case "like":
		operator = "LIKE"
	case "contains":
		operator = "LIKE"
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}

	adjusted := value
	if op == "contains" {
		adjusted = quoteSQL("%" + value + "%")
	} else if !strings.HasPrefix(value, "'") || !strings.HasSuffix(value, "'") {
		adjusted = quoteSQL(value)
	}

	sql := "CREATE TABLE " + outputTable + " AS SELECT * FROM " + inputTable +
		" WHERE " + column + " " + operator + " " + adjusted
	if _, err := m.db.Exec(sql); err != nil {
		return fmt.Errorf("failed to filter %s into %s: %w", inputTable, outputTable, err)
	}
	return nil
}
