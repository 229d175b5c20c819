package services

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus 事件的同步状态
type SyncStatus string

const (
	SyncStatusUnsaved SyncStatus = "unsaved" // 仅存在于本地账本
	SyncStatusSaving  SyncStatus = "saving"  // 批量保存进行中
	SyncStatusSynced  SyncStatus = "synced"  // 远端已确认
	SyncStatusError   SyncStatus = "error"   // 写入失败，等待重试
)

// NeedsSync 判断该状态是否需要进入下一次批量保存
func (s SyncStatus) NeedsSync() bool {
	return s == SyncStatusUnsaved || s == SyncStatusError
}

// GoalKind 进球事件类型
type GoalKind string

const (
	GoalKindGoal   GoalKind = "goal"
	GoalKindAssist GoalKind = "assist"
)

// CardType 牌类型
type CardType string

const (
	CardTypeYellow CardType = "yellow"
	CardTypeRed    CardType = "red"
)

// 事件分类，用于未保存计数和批量保存分组
const (
	CategoryGoals       = "goals"
	CategoryCards       = "cards"
	CategoryPlayerTimes = "player_times"
)

// TeamRef 队伍引用
type TeamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerRef 球员引用
type PlayerRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

// MatchEvent 比赛事件公共字段。ID 在本地生成，同步成功后记录远端 ID
type MatchEvent struct {
	ID         string     `json:"id"`
	RemoteID   int64      `json:"remote_id,omitempty"`
	FixtureID  string     `json:"fixture_id"`
	MatchTime  int        `json:"match_time"` // 比赛已进行秒数
	TeamID     string     `json:"team_id"`
	TeamName   string     `json:"team_name"`
	PlayerID   string     `json:"player_id"`
	PlayerName string     `json:"player_name"`
	SyncStatus SyncStatus `json:"sync_status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GoalEvent 进球或助攻事件
type GoalEvent struct {
	MatchEvent
	Kind           GoalKind `json:"kind"`
	IsOwnGoal      bool     `json:"is_own_goal"`
	AssistPlayerID string   `json:"assist_player_id,omitempty"`
}

// CardEvent 红黄牌事件
type CardEvent struct {
	MatchEvent
	CardType CardType `json:"card_type"`
	// Synthesized 表示该红牌由两黄自动生成
	Synthesized bool `json:"synthesized,omitempty"`
}

// PlayerTimeSession 球员上场时间段。EndTime 为 nil 表示仍在场上
type PlayerTimeSession struct {
	ID                 string     `json:"id"`
	RemoteID           int64      `json:"remote_id,omitempty"`
	FixtureID          string     `json:"fixture_id"`
	PlayerID           string     `json:"player_id"`
	TeamID             string     `json:"team_id"`
	StartTime          int        `json:"start_time"`
	EndTime            *int       `json:"end_time,omitempty"`
	AccumulatedSeconds int        `json:"accumulated_seconds"`
	SyncStatus         SyncStatus `json:"sync_status"`
}

// IsOpen 是否仍在计时
func (s *PlayerTimeSession) IsOpen() bool {
	return s.EndTime == nil
}

// Score 由账本推导出的比分
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// UnsyncedCounts 按分类统计的未保存数量
type UnsyncedCounts struct {
	Goals       int `json:"goals"`
	Cards       int `json:"cards"`
	PlayerTimes int `json:"player_times"`
}

// Total 未保存事件总数
func (c UnsyncedCounts) Total() int {
	return c.Goals + c.Cards + c.PlayerTimes
}

// newLocalID 生成本地事件 ID，同步前作为唯一标识
func newLocalID() string {
	return uuid.NewString()
}
