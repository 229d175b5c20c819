package database

import (
	"time"
)

// MatchEventRow 比赛事件记录
type MatchEventRow struct {
	ID                 int64     `db:"id"`
	LocalID            *string   `db:"local_id"`
	FixtureID          string    `db:"fixture_id"`
	EventType          string    `db:"event_type"`
	PlayerID           *string   `db:"player_id"`
	PlayerName         *string   `db:"player_name"`
	TeamID             *string   `db:"team_id"`
	TeamName           *string   `db:"team_name"`
	MatchTime          int       `db:"match_time"`
	IsOwnGoal          bool      `db:"is_own_goal"`
	AssistPlayerID     *string   `db:"assist_player_id"`
	CardType           *string   `db:"card_type"`
	Synthesized        bool      `db:"synthesized"`
	StartTime          *int      `db:"start_time"`
	EndTime            *int      `db:"end_time"`
	AccumulatedSeconds *int      `db:"accumulated_seconds"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// PlayerStatsRow 球员累计统计记录
type PlayerStatsRow struct {
	PlayerID  string    `db:"player_id"`
	Goals     int       `db:"goals"`
	Assists   int       `db:"assists"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FixtureScoreRow 比分记录
type FixtureScoreRow struct {
	FixtureID string    `db:"fixture_id"`
	HomeScore int       `db:"home_score"`
	AwayScore int       `db:"away_score"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SyncFailureRow 同步失败记录
type SyncFailureRow struct {
	ID        int64     `db:"id"`
	FixtureID string    `db:"fixture_id"`
	LocalID   string    `db:"local_id"`
	Category  string    `db:"category"`
	Reason    *string   `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
