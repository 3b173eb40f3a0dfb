package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"glossync/internal/config"
	"glossync/internal/pipeline"
)

func main() {
	var (
		cfgPath = flag.String("config", config.DefaultPath, "path to glossync.yaml")
		dryRun  = flag.Bool("dry-run", false, "collect and show the rows that would be appended without writing")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, nil)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	run := p.Run
	if *dryRun {
		run = p.DryRun
	}
	res, err := run(ctx)
	if err != nil {
		// a failed ledger write is the one failure that ends the run
		log.Fatalf("sync failed: %v", err)
	}

	for _, s := range res.Sources {
		status := "ok"
		if s.Error != "" {
			status = s.Error
		}
		fmt.Printf("%-8s %5d terms  %6dms  %s\n", s.Source, s.Terms, s.DurationMs, status)
	}

	switch {
	case res.Skipped != "":
		fmt.Printf("collected %d terms; ledger sync skipped: %s\n", res.Collected, res.Skipped)
	case *dryRun:
		for _, e := range res.Staged {
			fmt.Printf("+ %s\t%s\t%s\t%s\n", e.Initial, e.Term, e.Reading, e.Definition)
		}
		fmt.Printf("collected %d terms; %d would be appended (dry run)\n", res.Collected, len(res.Staged))
	default:
		fmt.Printf("collected %d terms; appended %d new rows\n", res.Collected, res.Appended)
	}
}
