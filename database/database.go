package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 比赛事件表
		`CREATE TABLE IF NOT EXISTS match_events (
			id BIGSERIAL PRIMARY KEY,
			local_id VARCHAR(64),
			fixture_id VARCHAR(100) NOT NULL,
			event_type VARCHAR(20) NOT NULL,
			player_id VARCHAR(100),
			player_name VARCHAR(255),
			team_id VARCHAR(100),
			team_name VARCHAR(255),
			match_time INTEGER NOT NULL DEFAULT 0,
			is_own_goal BOOLEAN DEFAULT FALSE,
			assist_player_id VARCHAR(100),
			card_type VARCHAR(10),
			synthesized BOOLEAN DEFAULT FALSE,
			start_time INTEGER,
			end_time INTEGER,
			accumulated_seconds INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_fixture_id ON match_events(fixture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_event_type ON match_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_player_id ON match_events(player_id)`,

		// 球员累计统计表
		`CREATE TABLE IF NOT EXISTS player_stats (
			player_id VARCHAR(100) PRIMARY KEY,
			goals INTEGER NOT NULL DEFAULT 0,
			assists INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// 比分表
		`CREATE TABLE IF NOT EXISTS fixture_scores (
			fixture_id VARCHAR(100) PRIMARY KEY,
			home_score INTEGER NOT NULL DEFAULT 0,
			away_score INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// 同步失败记录表
		`CREATE TABLE IF NOT EXISTS sync_failures (
			id BIGSERIAL PRIMARY KEY,
			fixture_id VARCHAR(100) NOT NULL,
			local_id VARCHAR(64) NOT NULL,
			category VARCHAR(20) NOT NULL,
			reason TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_failures_fixture_id ON sync_failures(fixture_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
