package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvazquezd/StockLens/internal/config"
	"github.com/dvazquezd/StockLens/internal/pipeline"
	"github.com/dvazquezd/StockLens/internal/scheduler"
	"github.com/dvazquezd/StockLens/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] StockLens starting...")

	once := flag.Bool("once", false, "run one refresh and exit instead of scheduling")
	flag.Parse()

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	db, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer db.Close()
	log.Printf("[INFO] store: %s", cfg.Database.SQLitePath)

	// Init pipeline
	pipe, err := pipeline.New(cfg, db)
	if err != nil {
		log.Fatalf("[FATAL] init pipeline: %v", err)
	}
	log.Printf("[INFO] agent: %s, assets: %d, cache: %t",
		cfg.Agent.Provider, len(cfg.Assets), *cfg.Cache.UseCache)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		if err := pipe.Run(ctx); err != nil {
			log.Fatalf("[FATAL] refresh: %v", err)
		}
		log.Println("[INFO] StockLens done")
		return
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, pipe)
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing refresh now")
		go sched.RunNow()
	}

	log.Println("[INFO] StockLens is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] StockLens stopped")
}
