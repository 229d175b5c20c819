package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PostgresRemoteStore RemoteStore 的 Postgres 实现
type PostgresRemoteStore struct {
	db *sql.DB
}

// NewPostgresRemoteStore 创建 Postgres 远端存储
func NewPostgresRemoteStore(db *sql.DB) *PostgresRemoteStore {
	return &PostgresRemoteStore{db: db}
}

// CreateMatchEvent 插入比赛事件，返回远端 ID
func (s *PostgresRemoteStore) CreateMatchEvent(ctx context.Context, fixtureID, eventType, playerID, teamID string, matchTime int, metadata map[string]string) (int64, error) {
	query := `
		INSERT INTO match_events (local_id, fixture_id, event_type, player_id, player_name, team_id, team_name,
		                          match_time, is_own_goal, assist_player_id, card_type, synthesized,
		                          start_time, end_time, accumulated_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	var remoteID int64
	err := s.db.QueryRowContext(ctx, query,
		nullable(metadata["local_id"]),
		fixtureID,
		eventType,
		nullable(playerID),
		nullable(metadata["player_name"]),
		nullable(teamID),
		nullable(metadata["team_name"]),
		matchTime,
		metadata["is_own_goal"] == "true",
		nullable(metadata["assist_player_id"]),
		nullable(metadata["card_type"]),
		metadata["synthesized"] == "true",
		nullableInt(metadata["start_time"]),
		nullableInt(metadata["end_time"]),
		nullableInt(metadata["accumulated_seconds"]),
	).Scan(&remoteID)
	if err != nil {
		return 0, fmt.Errorf("failed to create match event: %w", err)
	}

	return remoteID, nil
}

// UpdateMatchEvent 更新比赛事件的指定字段
func (s *PostgresRemoteStore) UpdateMatchEvent(ctx context.Context, remoteID int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	// 只允许更新白名单内的列
	allowed := map[string]bool{
		"player_id": true, "player_name": true, "team_id": true, "team_name": true,
		"match_time": true, "is_own_goal": true, "assist_player_id": true,
		"card_type": true, "end_time": true, "accumulated_seconds": true,
	}

	var sets []string
	var args []interface{}
	i := 1
	for col, val := range fields {
		if !allowed[col] {
			return fmt.Errorf("field %q is not updatable", col)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++
	args = append(args, remoteID)

	query := fmt.Sprintf("UPDATE match_events SET %s WHERE id = $%d", strings.Join(sets, ", "), i)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update match event %d: %w", remoteID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}

	return nil
}

// UpdatePlayerAggregateStats 累加球员进球/助攻统计
func (s *PostgresRemoteStore) UpdatePlayerAggregateStats(ctx context.Context, playerID string, goalsDelta, assistsDelta int) error {
	query := `
		INSERT INTO player_stats (player_id, goals, assists, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id)
		DO UPDATE SET
			goals = player_stats.goals + $2,
			assists = player_stats.assists + $3,
			updated_at = $4
	`

	_, err := s.db.ExecContext(ctx, query, playerID, goalsDelta, assistsDelta, time.Now())
	return err
}

// GetFixtureScore 读取远端缓存的比分
func (s *PostgresRemoteStore) GetFixtureScore(ctx context.Context, fixtureID string) (int, int, bool, error) {
	query := `SELECT home_score, away_score FROM fixture_scores WHERE fixture_id = $1`

	var home, away int
	err := s.db.QueryRowContext(ctx, query, fixtureID).Scan(&home, &away)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}

	return home, away, true, nil
}

// UpdateFixtureScore 写入比分
func (s *PostgresRemoteStore) UpdateFixtureScore(ctx context.Context, fixtureID string, home, away int) error {
	query := `
		INSERT INTO fixture_scores (fixture_id, home_score, away_score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fixture_id)
		DO UPDATE SET
			home_score = $2,
			away_score = $3,
			updated_at = $4
	`

	_, err := s.db.ExecContext(ctx, query, fixtureID, home, away, time.Now())
	return err
}

// RecordSyncFailure 记录一次单条写入失败，供事后排查
func (s *PostgresRemoteStore) RecordSyncFailure(ctx context.Context, fixtureID, localID, category, reason string) error {
	query := `
		INSERT INTO sync_failures (fixture_id, local_id, category, reason)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query, fixtureID, localID, category, reason)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
