package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/districtops/steward/pkg/types"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/steward", "Steward data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to backup the database before migration (default: <data-dir>/steward.db.backup)")
)

// legacyRecord is the pre-split schema: job and timeline stored as one value
// in a single "reconciliations" bucket.
type legacyRecord struct {
	Job      types.ReconciliationJob      `json:"job"`
	Timeline types.ReconciliationTimeline `json:"timeline"`
}

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Steward Database Migration Tool - reconciliations → jobs/timelines")
	log.Println("===================================================================")

	dbPath := filepath.Join(*dataDir, "steward.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	// Create backup unless in dry-run mode
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := migrateLegacyRecords(db, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to perform the migration.")
	} else {
		log.Println("\n✓ Migration completed successfully!")
		log.Println("Old 'reconciliations' bucket has been preserved for rollback if needed.")
	}
}

func migrateLegacyRecords(db *bolt.DB, dryRun bool) error {
	var recordCount int
	var migratedCount int

	// First, inspect what exists
	err := db.View(func(tx *bolt.Tx) error {
		legacy := tx.Bucket([]byte("reconciliations"))
		if legacy == nil {
			log.Println("✓ No 'reconciliations' bucket found - database is already using the new schema")
			return nil
		}
		return legacy.ForEach(func(k, v []byte) error {
			recordCount++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to inspect database: %w", err)
	}
	if recordCount == 0 {
		return nil
	}

	log.Printf("Found %d legacy records to migrate", recordCount)
	if dryRun {
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		legacy := tx.Bucket([]byte("reconciliations"))
		if legacy == nil {
			return nil
		}

		jobs, err := tx.CreateBucketIfNotExists([]byte("jobs"))
		if err != nil {
			return err
		}
		timelines, err := tx.CreateBucketIfNotExists([]byte("timelines"))
		if err != nil {
			return err
		}

		err = legacy.ForEach(func(k, v []byte) error {
			var record legacyRecord
			if err := json.Unmarshal(v, &record); err != nil {
				log.Printf("Skipping unreadable record %s: %v", k, err)
				return nil
			}

			jobData, err := json.Marshal(&record.Job)
			if err != nil {
				return err
			}
			if err := jobs.Put([]byte(record.Job.ID), jobData); err != nil {
				return err
			}

			tlData, err := json.Marshal(&record.Timeline)
			if err != nil {
				return err
			}
			if err := timelines.Put([]byte(record.Job.ID), tlData); err != nil {
				return err
			}

			migratedCount++
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("Migrated %d of %d records", migratedCount, recordCount)
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
