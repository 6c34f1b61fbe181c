package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/config"
	"github.com/raaihank/pet-gateway/internal/contextstore"
	"github.com/raaihank/pet-gateway/internal/etl"
	"github.com/raaihank/pet-gateway/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON lines)")
		batchSize  = flag.Int("batch-size", 500, "Objects per database batch")
		dryRun     = flag.Bool("dry-run", false, "Dry run - parse and group but don't write to database")
		showStats  = flag.Bool("stats", false, "Show context store statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input population.csv --batch-size 1000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input population.parquet --dry-run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting PET-Gateway context import", zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling import...")
		cancel()
	}()

	var store *contextstore.Store
	if !*dryRun || *showStats {
		store, err = contextstore.NewStore(&contextstore.Config{
			DatabaseURL:     cfg.Context.DatabaseURL,
			MaxOpenConns:    cfg.Context.MaxOpenConns,
			MaxIdleConns:    cfg.Context.MaxIdleConns,
			ConnMaxLifetime: cfg.Context.ConnMaxLifetime,
			MaxRows:         cfg.Context.MaxRows,
			BatchSize:       *batchSize,
		}, log.WithComponent("contextstore").Logger)
		if err != nil {
			log.Fatal("Failed to initialize context store", zap.Error(err))
		}
		defer store.Close()
	}

	if *showStats {
		if err := printStats(ctx, store); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

	var recorder etl.Recorder
	if store != nil {
		recorder = store
	}
	pipeline := etl.NewPipeline(recorder, &etl.Config{
		BatchSize:      *batchSize,
		ValidateData:   true,
		DryRun:         *dryRun,
		ProgressReport: 10000,
	}, log.WithComponent("etl").Logger)

	result, err := pipeline.ProcessFile(ctx, *inputFile)
	if err != nil {
		log.Fatal("Context import failed", zap.Error(err))
	}

	log.Info("Context import completed",
		zap.String("file", *inputFile),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("invalid_records", result.InvalidRecords),
		zap.Int64("partial_hierarchies", result.PartialHierarchies),
		zap.Int64("objects", result.Objects),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("database_time", result.DatabaseTime))

	if len(result.Errors) > 0 {
		log.Warn("Import completed with errors", zap.Strings("errors", result.Errors))
	}
}

// printStats displays current context store statistics
func printStats(ctx context.Context, store *contextstore.Store) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== PET-Gateway Context Store Statistics ===\n")
	fmt.Printf("Stored Objects:     %d\n", stats.TotalObjects)
	fmt.Printf("Distinct Schemas:   %d\n", stats.Schemas)
	return nil
}
