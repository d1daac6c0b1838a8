package database_test

import (
	"context"
	"fmt"
	"log"

	"github.com/wonny/optenrich/pkg/database"
)

// Example demonstrates how to open a scratch session
func Example() {
	ctx := context.Background()

	db, err := database.Open(ctx, database.ScratchPath("/tmp/25-01-2024.parquet"), database.Settings{
		Threads:       4,
		MemoryLimitGB: 2,
	})
	if err != nil {
		log.Fatalf("Failed to open scratch database: %v", err)
	}
	defer func() {
		db.Close()
		_ = database.RemoveFiles(db.Path)
	}()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	fmt.Printf("DuckDB %s healthy=%v\n", status.Version, status.Healthy)
}
