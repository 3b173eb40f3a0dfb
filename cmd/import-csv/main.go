package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"glossync/internal/config"
	"glossync/internal/ledger"
	"glossync/internal/reconciler"
)

func main() {
	var (
		cfgPath = flag.String("config", config.DefaultPath, "path to glossync.yaml")
		inPath  = flag.String("in", "data/terms.csv", "input CSV path (initial,term,reading,definition)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("open %s: %v", *inPath, err)
	}
	defer f.Close()

	entries, err := ledger.ReadCSV(f)
	if err != nil {
		log.Fatalf("read csv: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	l, closeLedger, err := ledger.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer closeLedger()

	// rows are already canonical; only terms the ledger lacks are added
	n, err := reconciler.New(l, nil).ReconcileEntries(ctx, entries)
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	log.Printf("imported %d of %d rows from %s", n, len(entries), *inPath)
}
