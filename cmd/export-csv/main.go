package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"glossync/internal/config"
	"glossync/internal/ledger"
)

func main() {
	var (
		cfgPath = flag.String("config", config.DefaultPath, "path to glossync.yaml")
		outPath = flag.String("out", "data/terms.csv", "output CSV path")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	l, closeLedger, err := ledger.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer closeLedger()

	entries, err := l.ReadAll(ctx)
	if err != nil {
		log.Fatalf("read ledger: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer f.Close()

	if err := ledger.WriteCSV(f, entries); err != nil {
		log.Fatalf("write csv: %v", err)
	}

	log.Printf("exported %d terms to %s", len(entries), *outPath)
}
