package services

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEvent 重复事件错误
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrValidationFailed 校验失败错误
	ErrValidationFailed = errors.New("validation failed")

	// ErrSyncFailed 同步失败错误
	ErrSyncFailed = errors.New("sync failed")

	// ErrEventNotFound 事件未找到错误
	ErrEventNotFound = errors.New("event not found")

	// ErrSessionExists 会话已存在错误
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound 会话未找到错误
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionOpen 球员已有未结束的上场时间段
	ErrSessionOpen = errors.New("player already on the clock")

	// ErrNoOpenSession 球员没有未结束的上场时间段
	ErrNoOpenSession = errors.New("player not on the clock")

	// ErrWizardClosed 向导已取消或已提交
	ErrWizardClosed = errors.New("goal wizard is closed")

	// ErrConfirmThrottled 确认操作触发防抖限制
	ErrConfirmThrottled = errors.New("confirm throttled")
)

// DuplicateError 插入的事件与账本中已有事件等价。携带冲突事件 ID 供 UI 提示
type DuplicateError struct {
	Category   string
	ConflictID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s event, conflicts with %s", e.Category, e.ConflictID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateEvent
}

// ValidationError 调用方提交了缺少必填字段的命令，属于 UI/编程错误，不允许进入账本
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// SyncError 批量保存整体失败 (快照为空之外的不可恢复情况)
type SyncError struct {
	FixtureID string
	Cause     error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("batch save failed for fixture %s: %v", e.FixtureID, e.Cause)
	}
	return fmt.Sprintf("batch save failed for fixture %s", e.FixtureID)
}

func (e *SyncError) Unwrap() error {
	return ErrSyncFailed
}

// ConsistencyWarning 非致命的数据不一致记录。只记录，不修正，不中断流程
type ConsistencyWarning struct {
	FixtureID string `json:"fixture_id"`
	Kind      string `json:"kind"` // unknown_team / score_mismatch
	Detail    string `json:"detail"`
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.FixtureID, w.Kind, w.Detail)
}

const (
	WarningUnknownTeam   = "unknown_team"
	WarningScoreMismatch = "score_mismatch"
)
