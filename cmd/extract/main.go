package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"finsheets/pkg/core/config"
	"finsheets/pkg/core/ingest"
	"finsheets/pkg/core/pipeline"
	"finsheets/pkg/core/store"
	"finsheets/pkg/core/workbook"
)

func main() {
	issuer := flag.String("issuer", "", "ticker or CIK to extract (required)")
	years := flag.Int("years", 0, "lookback window in fiscal years (default from env)")
	segments := flag.Bool("segments", true, "scan filings for segment/KPI tables")
	out := flag.String("out", "", "output workbook path (default <issuer>.xlsx)")
	flag.Parse()

	if *issuer == "" {
		fmt.Fprintln(os.Stderr, "Usage: extract -issuer AAPL [-years 5] [-segments] [-out aapl.xlsx]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
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

	result, err := orchestrator.Extract(ctx, *issuer, *years, *segments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s.xlsx", *issuer)
	}
	if err := workbook.NewWriter().WriteFile(result, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Workbook written to %s\n", path)

	if store.Enabled() {
		if err := store.InitDB(ctx); err != nil {
			fmt.Printf("Warning: database init failed: %v\n", err)
			return
		}
		defer store.Close()
		if err := store.NewResultRepo().Save(ctx, result); err != nil {
			fmt.Printf("Warning: failed to persist result: %v\n", err)
		} else {
			fmt.Printf("Result persisted for CIK %s\n", result.Issuer.CIK)
		}
	}
}
