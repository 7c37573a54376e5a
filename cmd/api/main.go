package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"finsheets/pkg/api/extract"
	"finsheets/pkg/core/config"
	"finsheets/pkg/core/ingest"
	"finsheets/pkg/core/pipeline"
	"finsheets/pkg/core/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := ingest.NewClient(ingest.Options{
		UserAgent:         cfg.SECUserAgent,
		RequestsPerSecond: cfg.SECRateLimit,
		Timeout:           cfg.HTTPTimeout,
	})
	orchestrator := pipeline.NewOrchestrator(client, pipeline.Options{
		LookbackYears:     cfg.LookbackYears,
		MaxSegmentFilings: cfg.MaxSegmentFilings,
		SegmentThreshold:  cfg.SegmentThreshold,
	})

	var saver extract.Saver
	if store.Enabled() {
		if err := store.InitDB(context.Background()); err != nil {
			fmt.Printf("[API] Warning: database init failed, persistence disabled: %v\n", err)
		} else {
			defer store.Close()
			saver = store.NewResultRepo()
			fmt.Println("[API] Result persistence enabled")
		}
	}

	handler := extract.NewHandler(orchestrator, saver)
	http.HandleFunc("/api/extract", handler.HandleExtract)

	fmt.Printf("[API] Listening on %s\n", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: server stopped: %v\n", err)
		os.Exit(1)
	}
}
