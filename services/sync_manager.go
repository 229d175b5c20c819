package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"refmatch-service/logger"
)

// SaveReport 一次批量保存的结果。批量保存不是全有或全无，
// 部分成功是预期内的结果，失败条目留在 error 状态等待重试。
type SaveReport struct {
	FixtureID string        `json:"fixture_id"`
	Attempted int           `json:"attempted"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	FailedIDs []string      `json:"failed_ids,omitempty"`
	Score     Score         `json:"score"`
	Duration  time.Duration `json:"duration"`
}

// BatchSyncManager 把账本中未保存的事件批量推送到远端存储。
// 单条写入失败互相隔离，不会阻塞其他条目；保存过程中账本仍可写入，
// 新事件保持 Unsaved 由下一轮同步处理。
type BatchSyncManager struct {
	ledger     *EventLedger
	store      RemoteStore
	broker     EventBroker      // 可为 nil
	notifier   *WebhookNotifier // 可为 nil
	failureLog SyncFailureLog   // 可为 nil

	writeTimeout    time.Duration
	confirmDebounce time.Duration

	mu          sync.Mutex
	lastConfirm time.Time
}

// NewBatchSyncManager 创建同步管理器
func NewBatchSyncManager(ledger *EventLedger, store RemoteStore, writeTimeout, confirmDebounce time.Duration) *BatchSyncManager {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if confirmDebounce <= 0 {
		confirmDebounce = 1300 * time.Millisecond
	}
	return &BatchSyncManager{
		ledger:          ledger,
		store:           store,
		writeTimeout:    writeTimeout,
		confirmDebounce: confirmDebounce,
	}
}

// SetBroker 设置已同步事件的下游发布器
func (m *BatchSyncManager) SetBroker(broker EventBroker) {
	m.broker = broker
}

// SetNotifier 设置运维告警通知器
func (m *BatchSyncManager) SetNotifier(notifier *WebhookNotifier) {
	m.notifier = notifier
}

// SetFailureLog 设置同步失败记录器
func (m *BatchSyncManager) SetFailureLog(log SyncFailureLog) {
	m.failureLog = log
}

// HasUnsavedChanges 账本中是否有待保存事件
func (m *BatchSyncManager) HasUnsavedChanges() bool {
	return m.ledger.UnsyncedCounts().Total() > 0
}

// UnsavedCount 各分类待保存数量
func (m *BatchSyncManager) UnsavedCount() UnsyncedCounts {
	return m.ledger.UnsyncedCounts()
}

// GateConfirm 确认操作防抖。快速重复点击在 DuplicateGuard 之外的第一道闸门，
// 间隔不足时返回 ErrConfirmThrottled，通过时消耗防抖窗口。
func (m *BatchSyncManager) GateConfirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastConfirm) < m.confirmDebounce {
		return ErrConfirmThrottled
	}
	m.lastConfirm = now
	return nil
}

// ConfirmAllowed 只检查防抖窗口，不消耗。提交前校验用，
// 校验失败的提交不应占用窗口导致紧随的更正被拒。
func (m *BatchSyncManager) ConfirmAllowed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastConfirm) < m.confirmDebounce {
		return ErrConfirmThrottled
	}
	return nil
}

// armConfirm 消耗防抖窗口，提交成功入账后调用
func (m *BatchSyncManager) armConfirm() {
	m.mu.Lock()
	m.lastConfirm = time.Now()
	m.mu.Unlock()
}

// BatchSave 批量保存。快照 Unsaved/Error 条目并标记 Saving，逐条写入远端，
// 按单条结果标记 Synced 或 Error。全部条目失败时额外返回 SyncError，
// 此时 report 仍然有效。
func (m *BatchSyncManager) BatchSave(ctx context.Context) (*SaveReport, error) {
	start := time.Now()
	fixtureID := m.ledger.FixtureID()

	batch := m.ledger.CollectForSync()
	report := &SaveReport{FixtureID: fixtureID, Attempted: batch.Size()}

	if batch.Size() == 0 {
		report.Score, _ = m.ledger.Score()
		return report, nil
	}

	logger.Printf("[SyncManager] 💾 Batch save started for fixture %s (%d goals, %d cards, %d player times)",
		fixtureID, len(batch.Goals), len(batch.Cards), len(batch.PlayerTimes))

	for _, g := range batch.Goals {
		m.saveGoal(ctx, g, report)
	}
	for _, c := range batch.Cards {
		m.saveCard(ctx, c, report)
	}
	for _, s := range batch.PlayerTimes {
		m.savePlayerTime(ctx, s, report)
	}

	// 成功写入过任何条目后都重新对账比分
	if report.Synced > 0 {
		m.reconcileScore(ctx, report)
	}

	report.Duration = time.Since(start)

	logger.Printf("[SyncManager] Batch save finished for fixture %s: %d synced, %d failed (%v)",
		fixtureID, report.Synced, report.Failed, report.Duration.Round(time.Millisecond))

	if report.Failed > 0 && m.notifier != nil {
		m.notifier.NotifySyncFailure(fixtureID, report.Failed, report.Attempted)
	}
	if report.Failed > 0 && report.Synced == 0 {
		return report, &SyncError{FixtureID: fixtureID, Cause: fmt.Errorf("%d of %d items failed", report.Failed, report.Attempted)}
	}

	return report, nil
}

// saveGoal 写入单条进球/助攻事件
func (m *BatchSyncManager) saveGoal(ctx context.Context, g *GoalEvent, report *SaveReport) {
	wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	eventType := EventTypeGoal
	if g.Kind == GoalKindAssist {
		eventType = EventTypeAssist
	}

	var err error
	created := false
	if g.RemoteID != 0 {
		err = m.store.UpdateMatchEvent(wctx, g.RemoteID, map[string]interface{}{
			"match_time":       g.MatchTime,
			"is_own_goal":      g.IsOwnGoal,
			"assist_player_id": g.AssistPlayerID,
		})
	} else {
		metadata := map[string]string{
			"local_id":    g.ID,
			"player_name": g.PlayerName,
			"team_name":   g.TeamName,
			"is_own_goal": strconv.FormatBool(g.IsOwnGoal),
		}
		if g.AssistPlayerID != "" {
			metadata["assist_player_id"] = g.AssistPlayerID
		}
		g.RemoteID, err = m.store.CreateMatchEvent(wctx, g.FixtureID, eventType, g.PlayerID, g.TeamID, g.MatchTime, metadata)
		created = err == nil
	}

	if err != nil {
		m.recordFailure(g.FixtureID, g.ID, CategoryGoals, err, report)
		return
	}

	m.ledger.MarkSynced(CategoryGoals, g.ID, g.RemoteID)
	report.Synced++

	// 新建成功后累加球员统计，更新路径不重复累加
	if created {
		goals, assists := 0, 0
		if g.Kind == GoalKindGoal && !g.IsOwnGoal {
			goals = 1
		}
		if g.Kind == GoalKindAssist {
			assists = 1
		}
		if goals > 0 || assists > 0 {
			if err := m.store.UpdatePlayerAggregateStats(wctx, g.PlayerID, goals, assists); err != nil {
				logger.Errorf("[SyncManager] Failed to update aggregate stats for player %s: %v", g.PlayerID, err)
			}
		}
	}

	m.publish(CategoryGoals, g.FixtureID, g)
}

// saveCard 写入单条牌事件
func (m *BatchSyncManager) saveCard(ctx context.Context, c *CardEvent, report *SaveReport) {
	wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	var err error
	if c.RemoteID != 0 {
		err = m.store.UpdateMatchEvent(wctx, c.RemoteID, map[string]interface{}{
			"match_time": c.MatchTime,
			"card_type":  string(c.CardType),
		})
	} else {
		metadata := map[string]string{
			"local_id":    c.ID,
			"player_name": c.PlayerName,
			"team_name":   c.TeamName,
			"card_type":   string(c.CardType),
			"synthesized": strconv.FormatBool(c.Synthesized),
		}
		c.RemoteID, err = m.store.CreateMatchEvent(wctx, c.FixtureID, EventTypeCard, c.PlayerID, c.TeamID, c.MatchTime, metadata)
	}

	if err != nil {
		m.recordFailure(c.FixtureID, c.ID, CategoryCards, err, report)
		return
	}

	m.ledger.MarkSynced(CategoryCards, c.ID, c.RemoteID)
	report.Synced++
	m.publish(CategoryCards, c.FixtureID, c)
}

// savePlayerTime 写入单条上场时间段
func (m *BatchSyncManager) savePlayerTime(ctx context.Context, s *PlayerTimeSession, report *SaveReport) {
	wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	var err error
	if s.RemoteID != 0 {
		fields := map[string]interface{}{
			"accumulated_seconds": s.AccumulatedSeconds,
		}
		if s.EndTime != nil {
			fields["end_time"] = *s.EndTime
		}
		err = m.store.UpdateMatchEvent(wctx, s.RemoteID, fields)
	} else {
		metadata := map[string]string{
			"local_id":            s.ID,
			"start_time":          strconv.Itoa(s.StartTime),
			"accumulated_seconds": strconv.Itoa(s.AccumulatedSeconds),
		}
		if s.EndTime != nil {
			metadata["end_time"] = strconv.Itoa(*s.EndTime)
		}
		s.RemoteID, err = m.store.CreateMatchEvent(wctx, s.FixtureID, EventTypePlayerTime, s.PlayerID, s.TeamID, s.StartTime, metadata)
	}

	if err != nil {
		m.recordFailure(s.FixtureID, s.ID, CategoryPlayerTimes, err, report)
		return
	}

	m.ledger.MarkSynced(CategoryPlayerTimes, s.ID, s.RemoteID)
	report.Synced++
	m.publish(CategoryPlayerTimes, s.FixtureID, s)
}

// recordFailure 单条失败: 标记 error、计入报告、落库留痕。
// 超时与网络错误同等对待，条目等待下一轮重试。
func (m *BatchSyncManager) recordFailure(fixtureID, localID, category string, cause error, report *SaveReport) {
	m.ledger.MarkError(category, localID)
	report.Failed++
	report.FailedIDs = append(report.FailedIDs, localID)

	logger.Errorf("[SyncManager] ❌ Failed to save %s item %s for fixture %s: %v", category, localID, fixtureID, cause)

	if m.failureLog != nil {
		lctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
		defer cancel()
		if err := m.failureLog.RecordSyncFailure(lctx, fixtureID, localID, category, cause.Error()); err != nil {
			logger.Errorf("[SyncManager] Failed to record sync failure: %v", err)
		}
	}
}

// reconcileScore 比分对账。本地现算比分是权威值；远端缓存不一致时
// 记录 ConsistencyWarning 后用本地值覆盖，绝不静默接受远端的旧值。
func (m *BatchSyncManager) reconcileScore(ctx context.Context, report *SaveReport) {
	local, warnings := m.ledger.Score()
	report.Score = local

	for _, w := range warnings {
		logger.Warnf("[SyncManager] %s", w.String())
		if m.notifier != nil {
			m.notifier.NotifyConsistencyWarning(w)
		}
	}

	wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	fixtureID := m.ledger.FixtureID()

	remoteHome, remoteAway, found, err := m.store.GetFixtureScore(wctx, fixtureID)
	if err != nil {
		logger.Errorf("[SyncManager] Failed to read remote score for fixture %s: %v", fixtureID, err)
	} else if found && (remoteHome != local.Home || remoteAway != local.Away) {
		w := ConsistencyWarning{
			FixtureID: fixtureID,
			Kind:      WarningScoreMismatch,
			Detail: fmt.Sprintf("remote cached score %d:%d differs from locally computed %d:%d, overwriting with local value",
				remoteHome, remoteAway, local.Home, local.Away),
		}
		logger.Warnf("[SyncManager] %s", w.String())
		if m.notifier != nil {
			m.notifier.NotifyConsistencyWarning(w)
		}
	}

	if err := m.store.UpdateFixtureScore(wctx, fixtureID, local.Home, local.Away); err != nil {
		logger.Errorf("[SyncManager] Failed to push score for fixture %s: %v", fixtureID, err)
	}
}

// publish 发布已同步事件到下游，尽力而为，失败只记日志
func (m *BatchSyncManager) publish(category, fixtureID string, payload interface{}) {
	if m.broker == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[SyncManager] Failed to marshal %s event for publishing: %v", category, err)
		return
	}

	if err := m.broker.Produce(BrokerMessage{
		Topic: EventTopic(category),
		Key:   fixtureID,
		Value: body,
	}); err != nil {
		logger.Errorf("[SyncManager] Failed to publish %s event: %v", category, err)
	}
}
