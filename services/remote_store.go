package services

import "context"

// 远端事件类型
const (
	EventTypeGoal       = "goal"
	EventTypeAssist     = "assist"
	EventTypeCard       = "card"
	EventTypePlayerTime = "player_time"
)

// RemoteStore 远端持久化接口。引擎把它当作一个会失败的异步依赖：
// 每次调用都可能超时或出错，失败的条目留在本地等待重试。
type RemoteStore interface {
	// CreateMatchEvent 创建一条比赛事件，返回远端 ID
	CreateMatchEvent(ctx context.Context, fixtureID, eventType, playerID, teamID string, matchTime int, metadata map[string]string) (int64, error)

	// UpdateMatchEvent 更新已存在的比赛事件
	UpdateMatchEvent(ctx context.Context, remoteID int64, fields map[string]interface{}) error

	// UpdatePlayerAggregateStats 累加球员进球/助攻统计
	UpdatePlayerAggregateStats(ctx context.Context, playerID string, goalsDelta, assistsDelta int) error

	// GetFixtureScore 读取远端缓存的比分，没有记录时 found 为 false
	GetFixtureScore(ctx context.Context, fixtureID string) (home, away int, found bool, err error)

	// UpdateFixtureScore 写入比分。本地现算比分永远是权威值。
	UpdateFixtureScore(ctx context.Context, fixtureID string, home, away int) error
}

// SyncFailureLog 同步失败记录，用于事后排查
type SyncFailureLog interface {
	RecordSyncFailure(ctx context.Context, fixtureID, localID, category, reason string) error
}
