package services

import (
	"context"
	"sync"
	"time"

	"refmatch-service/logger"
)

// SessionSnapshot 给上层 UI 消费的账本状态快照
type SessionSnapshot struct {
	FixtureID      string               `json:"fixture_id"`
	HomeTeam       TeamRef              `json:"home_team"`
	AwayTeam       TeamRef              `json:"away_team"`
	Score          Score                `json:"score"`
	Goals          []*GoalEvent         `json:"goals"`
	Cards          []*CardEvent         `json:"cards"`
	PlayerSessions []*PlayerTimeSession `json:"player_sessions"`
	UnsyncedCounts UnsyncedCounts       `json:"unsynced_counts"`
	Warnings       []ConsistencyWarning `json:"warnings,omitempty"`
	WizardState    WizardState          `json:"wizard_state,omitempty"`
}

// MatchSession 一场比赛的裁判会话，持有账本、进球向导和同步管理器。
// 同一时刻一个比赛只有一个会话持有账本，不建模多写者并发。
type MatchSession struct {
	fixtureID string
	homeTeam  TeamRef
	awayTeam  TeamRef

	ledger *EventLedger
	sync   *BatchSyncManager

	wizardMu sync.Mutex
	wizard   *GoalWizard

	onChangeMu sync.Mutex
	onChange   func(*SessionSnapshot)

	activityMu   sync.Mutex
	lastActivity time.Time
	createdAt    time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewMatchSession 创建会话，比赛被选中裁判时调用
func NewMatchSession(fixtureID string, homeTeam, awayTeam TeamRef, store RemoteStore, writeTimeout, confirmDebounce time.Duration) *MatchSession {
	ledger := NewEventLedger(fixtureID, homeTeam, awayTeam)
	return &MatchSession{
		fixtureID:    fixtureID,
		homeTeam:     homeTeam,
		awayTeam:     awayTeam,
		ledger:       ledger,
		sync:         NewBatchSyncManager(ledger, store, writeTimeout, confirmDebounce),
		createdAt:    time.Now(),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
}

// FixtureID 会话所属比赛
func (s *MatchSession) FixtureID() string {
	return s.fixtureID
}

// Ledger 账本访问器
func (s *MatchSession) Ledger() *EventLedger {
	return s.ledger
}

// Sync 同步管理器访问器
func (s *MatchSession) Sync() *BatchSyncManager {
	return s.sync
}

// SetOnChange 注册账本变更回调，web 层用它向 UI 推送新快照。
// 自动保存协程也会触发回调，注册必须与它互斥。
func (s *MatchSession) SetOnChange(fn func(*SessionSnapshot)) {
	s.onChangeMu.Lock()
	s.onChange = fn
	s.onChangeMu.Unlock()
}

// CreatedAt 会话创建时间
func (s *MatchSession) CreatedAt() time.Time {
	return s.createdAt
}

// LastActivity 最近一次命令时间
func (s *MatchSession) LastActivity() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActivity
}

func (s *MatchSession) touch() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

// Snapshot 当前账本状态快照
func (s *MatchSession) Snapshot() *SessionSnapshot {
	score, warnings := s.ledger.Score()
	warnings = append(warnings, s.ledger.AuditWarnings()...)

	snapshot := &SessionSnapshot{
		FixtureID:      s.fixtureID,
		HomeTeam:       s.homeTeam,
		AwayTeam:       s.awayTeam,
		Score:          score,
		Goals:          s.ledger.Goals(),
		Cards:          s.ledger.Cards(),
		PlayerSessions: s.ledger.PlayerSessions(),
		UnsyncedCounts: s.ledger.UnsyncedCounts(),
		Warnings:       warnings,
	}

	s.wizardMu.Lock()
	if s.wizard != nil {
		snapshot.WizardState = s.wizard.State()
	}
	s.wizardMu.Unlock()

	return snapshot
}

func (s *MatchSession) notifyChange() {
	s.onChangeMu.Lock()
	fn := s.onChange
	s.onChangeMu.Unlock()

	if fn != nil {
		fn(s.Snapshot())
	}
}

// AddGoal 直接添加进球 (不经过向导的入口)
func (s *MatchSession) AddGoal(input GoalInput) (*GoalEvent, *GoalEvent, error) {
	goal, assist, err := s.ledger.AddGoal(input)
	if err != nil {
		return nil, nil, err
	}
	s.touch()
	s.notifyChange()
	return goal, assist, nil
}

// AddCard 添加牌
func (s *MatchSession) AddCard(input CardInput) ([]*CardEvent, error) {
	cards, err := s.ledger.AddCard(input)
	if err != nil {
		return nil, err
	}
	s.touch()
	s.notifyChange()
	return cards, nil
}

// RemoveEvent 删除事件
func (s *MatchSession) RemoveEvent(id string) error {
	if err := s.ledger.RemoveEvent(id); err != nil {
		return err
	}
	s.touch()
	s.notifyChange()
	return nil
}

// StartPlayerTime 球员开始计时
func (s *MatchSession) StartPlayerTime(playerID, teamID string, matchTime int) (*PlayerTimeSession, error) {
	session, err := s.ledger.StartPlayerSession(playerID, teamID, matchTime)
	if err != nil {
		return nil, err
	}
	s.touch()
	s.notifyChange()
	return session, nil
}

// EndPlayerTime 球员结束计时
func (s *MatchSession) EndPlayerTime(playerID string, matchTime int) (*PlayerTimeSession, error) {
	session, err := s.ledger.EndPlayerSession(playerID, matchTime)
	if err != nil {
		return nil, err
	}
	s.touch()
	s.notifyChange()
	return session, nil
}

// Reset 比赛重置，原子清空账本并丢弃进行中的向导
func (s *MatchSession) Reset() {
	s.wizardMu.Lock()
	s.wizard = nil
	s.wizardMu.Unlock()

	s.ledger.Reset()
	s.touch()
	s.notifyChange()
}

// BatchSave 立即批量保存
func (s *MatchSession) BatchSave(ctx context.Context) (*SaveReport, error) {
	report, err := s.sync.BatchSave(ctx)
	s.touch()
	s.notifyChange()
	return report, err
}

// StartWizard 开始标准进球向导
func (s *MatchSession) StartWizard() *GoalWizard {
	s.wizardMu.Lock()
	defer s.wizardMu.Unlock()

	s.wizard = NewGoalWizard()
	return s.wizard
}

// StartWizardForTeam 快捷进球入口，队伍预选
func (s *MatchSession) StartWizardForTeam(team TeamRef) *GoalWizard {
	s.wizardMu.Lock()
	defer s.wizardMu.Unlock()

	s.wizard = NewGoalWizardForTeam(team)
	return s.wizard
}

// StartWizardForEdit 编辑已有进球事件
func (s *MatchSession) StartWizardForEdit(eventID string) (*GoalWizard, error) {
	var target *GoalEvent
	for _, g := range s.ledger.Goals() {
		if g.ID == eventID && g.Kind == GoalKindGoal {
			target = g
			break
		}
	}
	if target == nil {
		return nil, ErrEventNotFound
	}

	s.wizardMu.Lock()
	defer s.wizardMu.Unlock()

	s.wizard = NewGoalWizardForEdit(target)
	return s.wizard, nil
}

// Wizard 当前向导，没有进行中的向导时返回 nil
func (s *MatchSession) Wizard() *GoalWizard {
	s.wizardMu.Lock()
	defer s.wizardMu.Unlock()
	return s.wizard
}

// CommitWizard 提交向导并把进球写入账本。确认操作先过防抖闸门，
// 闸门只在进球真正入账后才消耗，校验失败的提交不占用防抖窗口。
// 编辑模式下旧事件被新事件替换。
func (s *MatchSession) CommitWizard(matchTime int) (*GoalEvent, *GoalEvent, error) {
	s.wizardMu.Lock()
	wizard := s.wizard
	s.wizardMu.Unlock()

	if wizard == nil {
		return nil, nil, ErrWizardClosed
	}

	if err := s.sync.ConfirmAllowed(); err != nil {
		return nil, nil, err
	}

	commit, err := wizard.Commit()
	if err != nil {
		return nil, nil, err
	}

	if commit.EditEventID != "" {
		// 编辑即替换：旧事件已被删除的情况容忍
		if err := s.ledger.RemoveEvent(commit.EditEventID); err != nil && err != ErrEventNotFound {
			return nil, nil, err
		}
	}

	goal, assist, err := s.ledger.AddGoal(GoalInput{
		Team:         commit.Team,
		Player:       commit.Player,
		MatchTime:    matchTime,
		IsOwnGoal:    commit.IsOwnGoal,
		AssistPlayer: commit.AssistPlayer,
	})
	if err != nil {
		return nil, nil, err
	}

	s.sync.armConfirm()

	s.wizardMu.Lock()
	s.wizard = nil
	s.wizardMu.Unlock()

	s.touch()
	s.notifyChange()
	return goal, assist, nil
}

// StartAutoSync 启动自动保存定时任务。会话内唯一的后台任务，
// Close 时随会话一起取消，避免向过期会话写入。
func (s *MatchSession) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Printf("[Session] 🚀 Auto-sync started for fixture %s (interval: %v)", s.fixtureID, interval)

		for {
			select {
			case <-ticker.C:
				if !s.sync.HasUnsavedChanges() {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := s.sync.BatchSave(ctx); err != nil {
					logger.Errorf("[Session] Auto-sync failed for fixture %s: %v", s.fixtureID, err)
				}
				cancel()
				s.notifyChange()
			case <-s.done:
				logger.Printf("[Session] Auto-sync stopped for fixture %s", s.fixtureID)
				return
			}
		}
	}()
}

// Close 结束会话，停止自动保存
func (s *MatchSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
