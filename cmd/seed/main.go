package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/EV-Profiles/internal/config"
	"github.com/EmpoweredVote/EV-Profiles/internal/db"
	"github.com/EmpoweredVote/EV-Profiles/internal/logging"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
	"github.com/EmpoweredVote/EV-Profiles/internal/seeds"
)

var (
	catalogPath = flag.String("catalog", "seeds/catalog.yaml", "Path to the YAML catalog")
	configPath  = flag.String("config", "config.yaml", "Path to the config file")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	catalog, err := seeds.LoadCatalog(*catalogPath)
	if err != nil {
		fatalf("catalog: %v", err)
	}

	fields := 0
	for _, a := range catalog.Aggregators {
		fields += len(a.Fields)
	}
	fmt.Printf("Loaded %d topics, %d aggregators, %d fields from %s\n",
		len(catalog.Topics), len(catalog.Aggregators), fields, *catalogPath)

	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync()

	d, err := db.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect", zap.Error(err))
	}
	if err := db.EnsureUUIDExtension(d); err != nil {
		logger.Fatal("Failed to enable uuid-ossp", zap.Error(err))
	}
	if err := reports.Init(d); err != nil {
		logger.Fatal("Failed to set up reports tables", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	counts, err := seeds.SeedAll(ctx, d, catalog, logger)
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}
	fmt.Printf("Seed complete: created topics=%d aggregators=%d fields=%d\n",
		counts.Topics, counts.Aggregators, counts.Fields)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
