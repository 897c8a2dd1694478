package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// verify_schema checks that a signals database has the expected tables and
// migrated columns. Useful after upgrading a long-lived deployment.
//
// Usage:
//   go run ./scripts/verify_schema.go [path/to/signals.db]

func main() {
	dbPath := "./data/signals.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	fmt.Printf("Verifying database at: %s\n", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	tables := []string{"wallets", "positions", "trades", "signals", "strategy_configs"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		switch {
		case err == sql.ErrNoRows:
			fmt.Printf("❌ table %s MISSING\n", table)
		case err != nil:
			log.Fatalf("Query failed: %v", err)
		default:
			fmt.Printf("✓ table %s exists\n", table)
		}
	}

	// Columns added by migrations after the initial schema.
	migrated := map[string]string{
		"positions": "unrealized_pnl",
		"trades":    "reason",
		"signals":   "confidence",
	}
	for table, column := range migrated {
		var schema string
		if err := db.QueryRow(
			"SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&schema); err != nil {
			fmt.Printf("❌ cannot read schema for %s: %v\n", table, err)
			continue
		}
		if strings.Contains(schema, column) {
			fmt.Printf("✓ %s.%s present\n", table, column)
		} else {
			fmt.Printf("❌ %s.%s MISSING (run the app once to migrate)\n", table, column)
		}
	}

	var signalCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM signals").Scan(&signalCount); err == nil {
		fmt.Printf("\nSignal history rows: %d\n", signalCount)
	}
	fmt.Println("Done.")
}
