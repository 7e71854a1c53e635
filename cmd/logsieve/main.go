package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cosmindanescu/logsieve/internal/api"
	"github.com/cosmindanescu/logsieve/internal/config"
	"github.com/cosmindanescu/logsieve/internal/database"
	"github.com/cosmindanescu/logsieve/internal/logmonitor"
	"github.com/cosmindanescu/logsieve/internal/pipeline"
	"github.com/cosmindanescu/logsieve/internal/record"
	"github.com/cosmindanescu/logsieve/internal/websocket"
)

func main() {
	var (
		configPath = flag.String("config", "logsieve.yaml", "Path to configuration file")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Logging.File != "" {
		logFile, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	db, err := database.Connect(&database.Config{
		Path:            cfg.Store.Path,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.GetStoreConnMaxLifetime(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer db.Close()

	loader, err := pipeline.NewLoader(cfg)
	if err != nil {
		log.Fatalf("Failed to create loader: %v", err)
	}

	streamer := websocket.NewStreamer()
	loader.OnBatch = func(id uint64, records int) {
		stats := loader.Stats()
		streamer.PublishBatch(websocket.BatchEvent{
			BatchID:        id,
			Records:        records,
			ProcessedLines: stats.ProcessedLines,
			FailedLines:    stats.FailedLines,
			MemoryPressure: stats.MemoryPressure,
		})
	}

	materializer := database.NewMaterializer(db)

	if cfg.Monitor.Enabled {
		monitor, err := logmonitor.New(cfg.Monitor, cfg.Ingest, db)
		if err != nil {
			log.Fatalf("Failed to create log monitor: %v", err)
		}
		monitor.Notify = func(source string, rec *record.LogRecord) {
			streamer.PublishTail(websocket.TailEvent{
				Source: source,
				Fields: rec.Fields(),
			})
		}
		if err := monitor.Start(); err != nil {
			log.Fatalf("Failed to start log monitor: %v", err)
		}
		defer monitor.Stop()
	}

	server := api.NewServer(cfg, loader, materializer, streamer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("logsieve listening on %s\n", cfg.GetServerAddress())
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
