// import-geoids loads census reference boundaries (a GeoJSON
// FeatureCollection, e.g. a TIGER/Line export converted with ogr2ogr) into
// census.geoid_boundaries, which place geoids are derived from.
//
// Usage: go run ./cmd/import-geoids -file tracts.geojson [-source tiger2010-tract]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

var (
	filePath    = flag.String("file", "", "Path to the GeoJSON FeatureCollection (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	source      = flag.String("source", "", "Label stored with each row, e.g. tiger2010-tract")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

const upsertBoundary = `
	INSERT INTO census.geoid_boundaries (geoid10, name, mtfcc, source, geometry, imported_at)
	VALUES ($1, $2, $3, $4, ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON($5), 4326)), now())
	ON CONFLICT (geoid10) DO UPDATE SET
		name = EXCLUDED.name,
		mtfcc = EXCLUDED.mtfcc,
		source = EXCLUDED.source,
		geometry = EXCLUDED.geometry,
		imported_at = now()
`

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *filePath == "" {
		fatalf("--file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		fatalf("read %s: %v", *filePath, err)
	}

	boundaries, skipped, err := parseBoundaries(data)
	if err != nil {
		fatalf("parse: %v", err)
	}
	fmt.Printf("Loaded %d boundaries from %s (%d features skipped)\n", len(boundaries), *filePath, len(skipped))
	for _, s := range skipped {
		fmt.Printf("  skipped: %s\n", s)
	}

	if *dryRun {
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, upsertBoundary)
	if err != nil {
		fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for i, b := range boundaries {
		if _, err := stmt.ExecContext(ctx, b.GeoID, b.Name, b.MTFCC, *source, string(b.Geometry)); err != nil {
			fatalf("upsert %s: %v", b.GeoID, err)
		}
		if (i+1)%1000 == 0 {
			fmt.Printf("  %d/%d\n", i+1, len(boundaries))
		}
	}

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM census.geoid_boundaries`).Scan(&total); err != nil {
		fatalf("count: %v", err)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Printf("Import complete: upserted %d, table now holds %d boundaries\n", len(boundaries), total)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
