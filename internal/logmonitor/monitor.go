package logmonitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cosmindanescu/logsieve/internal/config"
	"github.com/cosmindanescu/logsieve/internal/database"
	"github.com/cosmindanescu/logsieve/internal/parser"
	"github.com/cosmindanescu/logsieve/internal/record"
	"github.com/fsnotify/fsnotify"
)

// Monitor follows appended lines on watched log files, parses them with the
// configured parser, and bulk inserts the results into a fixed tail table.
// Rotation is detected by shrinking file size and by rename events.
type Monitor struct {
	watcher    *fsnotify.Watcher
	db         *database.DB
	cfg        config.MonitorConfig
	parser     parser.Parser
	paths      []string
	fileStates map[string]*FileState
	pending    []*tailedEntry
	seen       map[string]bool
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	// Notify, when set, receives every tailed record after parsing. Used
	// to feed the live stream.
	Notify func(source string, rec *record.LogRecord)
}

// FileState tracks the read position of a monitored log file
type FileState struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Position int64
	File     *os.File
}

type tailedEntry struct {
	source  string
	rec     *record.LogRecord
	rawLine string
}

// New creates a monitor over the given store connection.
func New(cfg config.MonitorConfig, ingest config.IngestConfig, db *database.DB) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	p, err := parser.New(parser.OptionsFromConfig(ingest))
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to create tail parser: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		watcher:    watcher,
		db:         db,
		cfg:        cfg,
		parser:     p,
		paths:      cfg.Paths,
		fileStates: make(map[string]*FileState),
		seen:       make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Start begins monitoring the configured paths.
func (m *Monitor) Start() error {
	if len(m.paths) == 0 {
		return fmt.Errorf("no paths configured for monitoring")
	}

	if err := m.createTailTable(); err != nil {
		return err
	}

	successCount := 0
	for _, path := range m.paths {
		if err := m.addLogFile(path); err != nil {
			log.Printf("Warning: failed to add log file %s: %v", path, err)
			continue
		}
		successCount++
	}

	if successCount == 0 {
		return fmt.Errorf("no log files could be monitored")
	}

	go m.monitorLoop()

	log.Printf("Log monitor started, watching %d files", successCount)
	return nil
}

// Stop stops the monitor and flushes any pending entries.
func (m *Monitor) Stop() error {
	m.cancel()

	m.mu.Lock()
	for _, state := range m.fileStates {
		if state.File != nil {
			state.File.Close()
		}
	}
	m.mu.Unlock()

	if err := m.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	<-m.done

	m.flush()

	log.Println("Log monitor stopped")
	return nil
}

func (m *Monitor) createTailTable() error {
	sql := "CREATE TABLE IF NOT EXISTS " + m.cfg.TableName + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		timestamp TEXT,
		level TEXT,
		message TEXT,
		raw_line TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`
	if _, err := m.db.Exec(sql); err != nil {
		return fmt.Errorf("failed to create tail table %s: %w", m.cfg.TableName, err)
	}
	return nil
}

// addLogFile starts following a file from its current end so only new
// entries are ingested.
func (m *Monitor) addLogFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Log file %s does not exist, will monitor for creation", path)
			return m.watcher.Add(filepath.Dir(path))
		}
		return fmt.Errorf("failed to stat log file %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	position, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to seek to end of file %s: %w", path, err)
	}

	m.mu.Lock()
	m.fileStates[path] = &FileState{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Position: position,
		File:     file,
	}
	m.mu.Unlock()

	if err := m.watcher.Add(path); err != nil {
		file.Close()
		return fmt.Errorf("failed to add file to watcher %s: %w", path, err)
	}

	log.Printf("Added log file to monitor: %s (size: %d, position: %d)", path, info.Size(), position)
	return nil
}

// monitorLoop is the main monitoring loop
func (m *Monitor) monitorLoop() {
	defer close(m.done)

	flushInterval := time.Duration(m.cfg.FlushInterval) * time.Second
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleFileEvent(event)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-ticker.C:
			m.flush()
		}
	}
}

// handleFileEvent processes file system events
func (m *Monitor) handleFileEvent(event fsnotify.Event) {
	isMonitoredFile := false
	for _, path := range m.paths {
		if event.Name == path || strings.HasSuffix(event.Name, filepath.Base(path)) {
			isMonitoredFile = true
			break
		}
	}
	if !isMonitoredFile {
		return
	}

	switch {
	case event.Has(fsnotify.Write):
		m.handleFileWrite(event.Name)
	case event.Has(fsnotify.Create):
		m.handleFileCreate(event.Name)
	case event.Has(fsnotify.Remove):
		m.handleFileRemove(event.Name)
	case event.Has(fsnotify.Rename):
		m.handleLogRotation(event.Name)
	}
}

func (m *Monitor) handleFileWrite(path string) {
	m.mu.RLock()
	state, exists := m.fileStates[path]
	m.mu.RUnlock()

	if !exists {
		if err := m.addLogFile(path); err != nil {
			log.Printf("Failed to add new log file %s: %v", path, err)
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Failed to stat file %s: %v", path, err)
		return
	}

	// A shrinking file means the log was rotated under us
	if info.Size() < state.Size {
		log.Printf("Log rotation detected for %s, reopening file", path)
		m.handleLogRotation(path)
		return
	}

	if err := m.processNewContent(state); err != nil {
		log.Printf("Failed to process new content in %s: %v", path, err)
	}
}

func (m *Monitor) handleFileCreate(path string) {
	for _, monitored := range m.paths {
		if path == monitored {
			log.Printf("Log file created: %s", path)
			if err := m.addLogFile(path); err != nil {
				log.Printf("Failed to add created log file %s: %v", path, err)
			}
			break
		}
	}
}

func (m *Monitor) handleFileRemove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, exists := m.fileStates[path]; exists {
		log.Printf("Log file removed: %s", path)
		if state.File != nil {
			state.File.Close()
		}
		delete(m.fileStates, path)
	}
}

// handleLogRotation reopens a rotated file and resets the read position.
func (m *Monitor) handleLogRotation(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.fileStates[path]
	if !exists {
		return
	}

	if state.File != nil {
		state.File.Close()
	}

	file, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to reopen rotated log file %s: %v", path, err)
		// Keep the state, the file might be recreated
		state.File = nil
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Failed to stat reopened log file %s: %v", path, err)
		file.Close()
		state.File = nil
		return
	}

	state.File = file
	state.Size = info.Size()
	state.ModTime = info.ModTime()
	state.Position = 0

	log.Printf("Reopened rotated log file: %s (new size: %d)", path, info.Size())
}

// processNewContent reads appended lines from the last known position,
// parses them, and queues the results for the next flush.
func (m *Monitor) processNewContent(state *FileState) error {
	if state.File == nil {
		return fmt.Errorf("file handle is nil for %s", state.Path)
	}

	if _, err := state.File.Seek(state.Position, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek in %s: %w", state.Path, err)
	}

	scanner := bufio.NewScanner(state.File)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.ingestLine(state.Path, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", state.Path, err)
	}

	position, err := state.File.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to query position in %s: %w", state.Path, err)
	}

	m.mu.Lock()
	state.Position = position
	if info, err := os.Stat(state.Path); err == nil {
		state.Size = info.Size()
		state.ModTime = info.ModTime()
	}
	shouldFlush := len(m.pending) >= m.cfg.BatchSize
	m.mu.Unlock()

	if shouldFlush {
		m.flush()
	}
	return nil
}

// ingestLine parses one tailed line and queues it. Lines the parser rejects
// are stored with the raw content only so nothing tailed is lost.
func (m *Monitor) ingestLine(sourcePath, line string) {
	m.mu.Lock()
	if m.cfg.Deduplicate {
		if m.seen[line] {
			m.mu.Unlock()
			return
		}
		m.seen[line] = true
		// Bound the dedup window so a long-running tail cannot grow it
		// indefinitely
		if len(m.seen) > 10*m.cfg.BatchSize {
			m.seen = make(map[string]bool)
		}
	}
	m.mu.Unlock()

	var rec *record.LogRecord
	if m.parser.Validate(line) {
		parsed, err := m.parser.ParseLine(line)
		if err == nil {
			rec = parsed
		}
	}

	m.mu.Lock()
	m.pending = append(m.pending, &tailedEntry{source: sourcePath, rec: rec, rawLine: line})
	m.mu.Unlock()

	if m.Notify != nil && rec != nil {
		m.Notify(sourcePath, rec)
	}
}

// flush writes the pending entries in one transaction.
func (m *Monitor) flush() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	tx, err := m.db.BeginTx()
	if err != nil {
		log.Printf("Failed to begin tail transaction: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO " + m.cfg.TableName +
		" (source, timestamp, level, message, raw_line, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		log.Printf("Failed to prepare tail insert: %v", err)
		return
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, entry := range pending {
		var ts, level, message any
		if entry.rec != nil {
			ts = nullable(entry.rec.GetField("timestamp"))
			level = nullable(entry.rec.GetField("level"))
			message = nullable(entry.rec.GetField("message"))
		}
		if _, err := stmt.Exec(entry.source, ts, level, message, entry.rawLine, now); err != nil {
			log.Printf("Failed to insert tailed entry: %v", err)
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("Failed to commit tail transaction: %v", err)
		return
	}

	log.Printf("Flushed %d tailed entries to %s", len(pending), m.cfg.TableName)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
