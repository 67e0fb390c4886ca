// Maintenance CLI for the cache database: inspect cache usage, purge
// expired entries or drop a whole key type without starting the server.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/db"
	"github.com/inkroad/inkroad/internal/store"
)

func main() {
	stats := flag.Bool("stats", false, "Print cache statistics")
	purgeExpired := flag.Bool("purge-expired", false, "Delete all expired cache entries")
	purgeType := flag.String("purge-type", "", "Delete all entries of one key type (e.g. chapter, fiction, toplist)")
	flag.Parse()

	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Run database migrations
	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		log.Fatalf("Could not create sqlite3 migration driver: %v", err)
	}
	// This relative path assumes you run the CLI from the project root.
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "sqlite3", driver)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("An error occurred while applying migrations: %v", err)
	}

	st := store.New(database)

	switch {
	case *stats:
		printStats(st)
	case *purgeExpired:
		n, err := st.PurgeExpired()
		if err != nil {
			log.Fatalf("Failed to purge expired entries: %v", err)
		}
		fmt.Printf("Purged %d expired entries.\n", n)
	case *purgeType != "":
		n, err := st.PurgeByTypePrefix(*purgeType)
		if err != nil {
			log.Fatalf("Failed to purge %q entries: %v", *purgeType, err)
		}
		fmt.Printf("Purged %d %q entries.\n", n, *purgeType)
	default:
		flag.Usage()
	}
}

func printStats(st *store.Store) {
	cacheStats, err := st.Stats()
	if err != nil {
		log.Fatalf("Failed to read cache statistics: %v", err)
	}
	fmt.Printf("Entries: %d (%d expired), %d bytes\n",
		cacheStats.TotalEntries, cacheStats.Expired, cacheStats.TotalBytes)
	fmt.Printf("Images:  %d entries, %d bytes\n", cacheStats.ImageEntries, cacheStats.ImageBytes)
	for _, ts := range cacheStats.ByType {
		fmt.Printf("  %-10s %6d entries %10d bytes\n", ts.Type, ts.Entries, ts.Bytes)
	}
}
