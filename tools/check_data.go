package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("=== Database Statistics ===")

	// Check each table
	tables := []string{
		"match_events",
		"player_stats",
		"fixture_scores",
		"sync_failures",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			log.Printf("✗ %s: Error - %v", table, err)
			continue
		}
		log.Printf("✓ %s: %d rows", table, count)

		// Show latest record timestamp if available
		if table == "match_events" && count > 0 {
			var latestTime time.Time
			err := db.QueryRow("SELECT MAX(created_at) FROM match_events").Scan(&latestTime)
			if err == nil {
				log.Printf("  └─ Latest event: %s", latestTime.Format("2006-01-02 15:04:05"))
			}
		}
	}

	// Show recent events
	log.Println("\n=== Recent Match Events (Last 5) ===")
	rows, err := db.Query(`
		SELECT fixture_id, event_type, player_name, match_time, created_at
		FROM match_events
		ORDER BY created_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Printf("Error querying match events: %v", err)
	} else {
		defer rows.Close()
		count := 0
		for rows.Next() {
			var fixtureID, eventType string
			var playerName sql.NullString
			var matchTime int
			var createdAt time.Time
			if err := rows.Scan(&fixtureID, &eventType, &playerName, &matchTime, &createdAt); err != nil {
				log.Printf("Error scanning row: %v", err)
				continue
			}
			count++
			log.Printf("%d. [%s] %s - Fixture: %s - Player: %s - t=%ds",
				count, createdAt.Format("15:04:05"), eventType, fixtureID, playerName.String, matchTime)
		}
		if count == 0 {
			log.Println("(No match events found)")
		}
	}

	// Show fixtures with most recorded events
	log.Println("\n=== Fixtures (Top 5 by event count) ===")
	rows, err = db.Query(`
		SELECT fixture_id, COUNT(*) AS events, MAX(created_at) AS last_event
		FROM match_events
		GROUP BY fixture_id
		ORDER BY events DESC
		LIMIT 5
	`)
	if err != nil {
		log.Printf("Error querying fixtures: %v", err)
	} else {
		defer rows.Close()
		count := 0
		for rows.Next() {
			var fixtureID string
			var events int
			var lastEvent sql.NullTime
			if err := rows.Scan(&fixtureID, &events, &lastEvent); err != nil {
				log.Printf("Error scanning row: %v", err)
				continue
			}
			count++
			lastMsg := "never"
			if lastEvent.Valid {
				lastMsg = lastEvent.Time.Format("15:04:05")
			}
			log.Printf("%d. Fixture %s - %d events - Last: %s", count, fixtureID, events, lastMsg)
		}
		if count == 0 {
			log.Println("(No fixtures found)")
		}
	}

	// Show recent sync failures
	log.Println("\n=== Sync Failures (Last 5) ===")
	rows, err = db.Query(`
		SELECT fixture_id, local_id, category, reason, created_at
		FROM sync_failures
		ORDER BY created_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Printf("Error querying sync failures: %v", err)
	} else {
		defer rows.Close()
		count := 0
		for rows.Next() {
			var fixtureID, localID, category string
			var reason sql.NullString
			var createdAt time.Time
			if err := rows.Scan(&fixtureID, &localID, &category, &reason, &createdAt); err != nil {
				log.Printf("Error scanning row: %v", err)
				continue
			}
			count++
			log.Printf("%d. [%s] %s/%s (%s): %s",
				count, createdAt.Format("15:04:05"), fixtureID, localID, category, reason.String)
		}
		if count == 0 {
			log.Println("(No sync failures found)")
		}
	}

	log.Println("\n=== Check Complete ===")
}
