package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cosmindanescu/logsieve/internal/database"
	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, s.loader.Stats())
}

// handleLoad loads the configured input file into a table, chunking when
// the file exceeds the memory limit.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableName string `json:"table_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.TableName == "" {
		WriteBadRequestResponse(w, "table_name is required")
		return
	}

	opts := database.ChunkingOptions{
		MemoryLimitMB: s.cfg.Store.MemoryLimitMB,
		ChunkSize:     s.cfg.Store.ChunkSize,
		ForceChunking: s.cfg.Store.ForceChunking,
	}
	if err := s.materializer.LoadFile(r.Context(), s.loader, req.TableName, opts); err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	count, err := s.materializer.RowCount(req.TableName)
	if err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	WriteSuccessResponse(w, map[string]interface{}{
		"table": req.TableName,
		"rows":  count,
	})
}

// handleFilter creates a derived table, either projecting columns or
// selecting rows with a column/operator/value condition.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	inputTable := mux.Vars(r)["table"]

	var req struct {
		OutputTable string   `json:"output_table"`
		Columns     []string `json:"columns,omitempty"`
		Column      string   `json:"column,omitempty"`
		Operator    string   `json:"operator,omitempty"`
		Value       string   `json:"value,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.OutputTable == "" {
		WriteBadRequestResponse(w, "output_table is required")
		return
	}

	var err error
	if req.Column != "" {
		err = s.materializer.FilterRows(inputTable, req.OutputTable, req.Column, req.Operator, req.Value)
	} else {
		err = s.materializer.FilterColumns(inputTable, req.OutputTable, req.Columns)
	}

	if err != nil {
		if errors.Is(err, database.ErrUnsupportedOperator) {
			WriteBadRequestResponse(w, err.Error())
			return
		}
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	count, err := s.materializer.RowCount(req.OutputTable)
	if err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	WriteSuccessResponse(w, map[string]interface{}{
		"table": req.OutputTable,
		"rows":  count,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Path == "" {
		WriteBadRequestResponse(w, "path is required")
		return
	}

	if err := s.materializer.ExportCSV(table, req.Path); err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	WriteSuccessResponse(w, map[string]interface{}{
		"table": table,
		"path":  req.Path,
	})
}

// handleExtract runs named patterns over submitted lines and materialises
// the captures into a table.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableName string            `json:"table_name"`
		Lines     []string          `json:"lines"`
		Patterns  map[string]string `json:"patterns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.TableName == "" || len(req.Patterns) == 0 {
		WriteBadRequestResponse(w, "table_name and patterns are required")
		return
	}

	if err := s.materializer.ExtractAttributes(req.Lines, req.Patterns, req.TableName); err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	WriteSuccessResponse(w, map[string]interface{}{
		"table": req.TableName,
		"lines": len(req.Lines),
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	count, err := s.materializer.RowCount(table)
	if err != nil {
		WriteInternalErrorResponse(w, err.Error())
		return
	}

	WriteSuccessResponse(w, map[string]interface{}{
		"table": table,
		"rows":  count,
	})
}
