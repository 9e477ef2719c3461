package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"scancapture/internal/config"
	"scancapture/internal/repository/sqlite"
	"scancapture/internal/service/storage"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	scanRoot := flag.String("scans", cfg.ScanRoot, "Directory containing Scan_* session folders")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Reindexing sessions from %s into database %s\n", *scanRoot, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	catalog := sqlite.NewCatalog(db)

	dirs, err := storage.ListSessions(*scanRoot)
	if err != nil {
		log.Fatalf("Failed to read scan directory: %v", err)
	}
	if len(dirs) == 0 {
		fmt.Println("No sessions found to reindex")
		return
	}

	indexed, skipped := 0, 0
	for _, dir := range dirs {
		data, err := storage.ReadScanData(dir)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", filepath.Base(dir), err)
			skipped++
			continue
		}
		session, err := data.Session(dir)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", filepath.Base(dir), err)
			skipped++
			continue
		}

		// scan_data.json is written at stop time
		info, err := os.Stat(filepath.Join(dir, storage.ScanDataFile))
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", filepath.Base(dir), err)
			skipped++
			continue
		}
		_, sceneErr := os.Stat(filepath.Join(dir, storage.SceneDataFile))

		if err := catalog.Record(session, info.ModTime().UTC(), sceneErr == nil); err != nil {
			log.Printf("⚠️  Failed to record %s: %v", session.ID, err)
			skipped++
			continue
		}
		indexed++
	}

	fmt.Printf("✅ Reindexed %d session(s), skipped %d\n", indexed, skipped)
}
