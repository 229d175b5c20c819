package services

import (
	"fmt"
	"sync"
	"time"

	"refmatch-service/logger"
)

// GoalInput 添加进球命令的输入
type GoalInput struct {
	Team         TeamRef
	Player       PlayerRef
	MatchTime    int
	IsOwnGoal    bool
	AssistPlayer *PlayerRef
}

// CardInput 添加牌命令的输入
type CardInput struct {
	Team      TeamRef
	Player    PlayerRef
	MatchTime int
	CardType  CardType
}

// EventLedger 单场比赛的事件账本。同步完成前它是 UI 的唯一事实来源。
// 所有写路径先过 DuplicateGuard，比分永远从进球事件现算，不单独存储。
type EventLedger struct {
	mu sync.RWMutex

	fixtureID  string
	homeTeam   TeamRef
	awayTeam   TeamRef
	goals      []*GoalEvent
	cards      []*CardEvent
	timeSlices []*PlayerTimeSession

	guard DuplicateGuard

	// 审计记录：曾经发现的数据不一致，reset 前不清除
	auditWarnings []ConsistencyWarning
}

// NewEventLedger 创建账本，比赛被选中裁判时调用
func NewEventLedger(fixtureID string, homeTeam, awayTeam TeamRef) *EventLedger {
	return &EventLedger{
		fixtureID: fixtureID,
		homeTeam:  homeTeam,
		awayTeam:  awayTeam,
	}
}

// FixtureID 账本所属比赛
func (l *EventLedger) FixtureID() string {
	return l.fixtureID
}

// AddGoal 添加进球事件，带助攻时同时生成助攻事件。
// 两个事件要么都进账本要么都不进，查重命中时返回 DuplicateError 且不产生任何变更。
func (l *EventLedger) AddGoal(input GoalInput) (*GoalEvent, *GoalEvent, error) {
	if err := validateGoalInput(input); err != nil {
		return nil, nil, err
	}

	goal := &GoalEvent{
		MatchEvent: MatchEvent{
			ID:         newLocalID(),
			FixtureID:  l.fixtureID,
			MatchTime:  input.MatchTime,
			TeamID:     input.Team.ID,
			TeamName:   input.Team.Name,
			PlayerID:   input.Player.ID,
			PlayerName: input.Player.Name,
			SyncStatus: SyncStatusUnsaved,
			CreatedAt:  time.Now(),
		},
		Kind:      GoalKindGoal,
		IsOwnGoal: input.IsOwnGoal,
	}

	var assist *GoalEvent
	if input.AssistPlayer != nil {
		goal.AssistPlayerID = input.AssistPlayer.ID
		assist = &GoalEvent{
			MatchEvent: MatchEvent{
				ID:         newLocalID(),
				FixtureID:  l.fixtureID,
				MatchTime:  input.MatchTime,
				TeamID:     input.Team.ID,
				TeamName:   input.Team.Name,
				PlayerID:   input.AssistPlayer.ID,
				PlayerName: input.AssistPlayer.Name,
				SyncStatus: SyncStatusUnsaved,
				CreatedAt:  time.Now(),
			},
			Kind: GoalKindAssist,
			// 助攻事件永远不是乌龙球
			IsOwnGoal: false,
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if conflict := l.guard.FindGoalConflict(l.goals, goal); conflict != nil {
		logger.Printf("[Ledger] Duplicate goal rejected for fixture %s (player %s, t=%ds, conflicts with %s)",
			l.fixtureID, goal.PlayerID, goal.MatchTime, conflict.ID)
		return nil, nil, &DuplicateError{Category: CategoryGoals, ConflictID: conflict.ID}
	}
	if assist != nil {
		if conflict := l.guard.FindGoalConflict(l.goals, assist); conflict != nil {
			logger.Printf("[Ledger] Duplicate assist rejected for fixture %s (player %s, t=%ds, conflicts with %s)",
				l.fixtureID, assist.PlayerID, assist.MatchTime, conflict.ID)
			return nil, nil, &DuplicateError{Category: CategoryGoals, ConflictID: conflict.ID}
		}
	}

	l.goals = append(l.goals, goal)
	if assist != nil {
		l.goals = append(l.goals, assist)
	}

	if input.Team.ID != l.homeTeam.ID && input.Team.ID != l.awayTeam.ID {
		l.auditWarnings = append(l.auditWarnings, ConsistencyWarning{
			FixtureID: l.fixtureID,
			Kind:      WarningUnknownTeam,
			Detail:    fmt.Sprintf("goal %s recorded for team %q which is neither side of the fixture", goal.ID, input.Team.ID),
		})
		logger.Warnf("[Ledger] Goal %s references unknown team %q in fixture %s", goal.ID, input.Team.ID, l.fixtureID)
	}

	return goal, assist, nil
}

// AddCard 添加牌事件。同一球员的第二张黄牌会自动追加一张合成红牌，
// 返回值包含本次实际入账的全部事件。
func (l *EventLedger) AddCard(input CardInput) ([]*CardEvent, error) {
	if err := validateCardInput(input); err != nil {
		return nil, err
	}

	card := &CardEvent{
		MatchEvent: MatchEvent{
			ID:         newLocalID(),
			FixtureID:  l.fixtureID,
			MatchTime:  input.MatchTime,
			TeamID:     input.Team.ID,
			TeamName:   input.Team.Name,
			PlayerID:   input.Player.ID,
			PlayerName: input.Player.Name,
			SyncStatus: SyncStatusUnsaved,
			CreatedAt:  time.Now(),
		},
		CardType: input.CardType,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if conflict := l.guard.FindCardConflict(l.cards, card); conflict != nil {
		logger.Printf("[Ledger] Duplicate card rejected for fixture %s (player %s, %s, t=%ds, conflicts with %s)",
			l.fixtureID, card.PlayerID, card.CardType, card.MatchTime, conflict.ID)
		return nil, &DuplicateError{Category: CategoryCards, ConflictID: conflict.ID}
	}

	inserted := []*CardEvent{card}
	l.cards = append(l.cards, card)

	// 两黄变一红：黄牌数恰好从 1 变 2 时合成一张红牌，绝不合成两张
	if input.CardType == CardTypeYellow && l.yellowCountLocked(input.Player.ID) == 2 {
		red := &CardEvent{
			MatchEvent: MatchEvent{
				ID:         newLocalID(),
				FixtureID:  l.fixtureID,
				MatchTime:  input.MatchTime,
				TeamID:     input.Team.ID,
				TeamName:   input.Team.Name,
				PlayerID:   input.Player.ID,
				PlayerName: input.Player.Name,
				SyncStatus: SyncStatusUnsaved,
				CreatedAt:  time.Now(),
			},
			CardType:    CardTypeRed,
			Synthesized: true,
		}
		l.cards = append(l.cards, red)
		inserted = append(inserted, red)
		logger.Printf("[Ledger] 🟥 Second yellow for player %s in fixture %s, synthesized red card %s",
			input.Player.ID, l.fixtureID, red.ID)
	}

	return inserted, nil
}

// yellowCountLocked 统计球员黄牌数，调用方必须持有写锁
func (l *EventLedger) yellowCountLocked(playerID string) int {
	count := 0
	for _, c := range l.cards {
		if c.PlayerID == playerID && c.CardType == CardTypeYellow {
			count++
		}
	}
	return count
}

// RemoveEvent 删除单个进球或牌事件，账本中唯一的硬删除路径 (除 Reset 外)。
// 进球与助攻成对入账，删除也成对：删除进球时一并删除配对助攻，
// 删除助攻时清掉进球上的助攻引用，账本里不留孤儿事件。
func (l *EventLedger) RemoveEvent(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, g := range l.goals {
		if g.ID == id {
			l.goals = append(l.goals[:i], l.goals[i+1:]...)

			if g.Kind == GoalKindGoal && g.AssistPlayerID != "" {
				for j, a := range l.goals {
					if a.Kind == GoalKindAssist && a.PlayerID == g.AssistPlayerID &&
						a.MatchTime == g.MatchTime && a.TeamID == g.TeamID {
						l.goals = append(l.goals[:j], l.goals[j+1:]...)
						logger.Printf("[Ledger] Removed paired assist %s with goal %s from fixture %s", a.ID, id, l.fixtureID)
						break
					}
				}
			}
			if g.Kind == GoalKindAssist {
				for _, parent := range l.goals {
					if parent.Kind == GoalKindGoal && parent.AssistPlayerID == g.PlayerID &&
						parent.MatchTime == g.MatchTime && parent.TeamID == g.TeamID {
						parent.AssistPlayerID = ""
						break
					}
				}
			}

			logger.Printf("[Ledger] Removed goal event %s from fixture %s", id, l.fixtureID)
			return nil
		}
	}
	for i, c := range l.cards {
		if c.ID == id {
			l.cards = append(l.cards[:i], l.cards[i+1:]...)
			logger.Printf("[Ledger] Removed card event %s from fixture %s", id, l.fixtureID)
			return nil
		}
	}
	return ErrEventNotFound
}

// StartPlayerSession 球员开始计时。每个球员同一时刻最多一个未结束时间段。
func (l *EventLedger) StartPlayerSession(playerID, teamID string, matchTime int) (*PlayerTimeSession, error) {
	if playerID == "" {
		return nil, &ValidationError{Field: "playerId", Message: "player id is required"}
	}
	if matchTime < 0 {
		return nil, &ValidationError{Field: "matchTime", Message: "match time must not be negative"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.timeSlices {
		if s.PlayerID == playerID && s.IsOpen() {
			return nil, ErrSessionOpen
		}
	}

	session := &PlayerTimeSession{
		ID:         newLocalID(),
		FixtureID:  l.fixtureID,
		PlayerID:   playerID,
		TeamID:     teamID,
		StartTime:  matchTime,
		SyncStatus: SyncStatusUnsaved,
	}
	l.timeSlices = append(l.timeSlices, session)

	return session, nil
}

// EndPlayerSession 球员结束计时，累计上场秒数
func (l *EventLedger) EndPlayerSession(playerID string, matchTime int) (*PlayerTimeSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.timeSlices {
		if s.PlayerID == playerID && s.IsOpen() {
			end := matchTime
			if end < s.StartTime {
				// 计时器回拨时按零时长处理，不允许负数
				end = s.StartTime
			}
			s.EndTime = &end
			s.AccumulatedSeconds = end - s.StartTime
			s.SyncStatus = SyncStatusUnsaved
			return s, nil
		}
	}
	return nil, ErrNoOpenSession
}

// Reset 原子清空整个账本，比赛重置或切换比赛时调用
func (l *EventLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.goals = nil
	l.cards = nil
	l.timeSlices = nil
	l.auditWarnings = nil

	logger.Printf("[Ledger] Fixture %s ledger reset", l.fixtureID)
}

// Score 现算比分。读方永远看不到半插入状态的比分。
func (l *EventLedger) Score() (Score, []ConsistencyWarning) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ComputeScore(l.homeTeam.ID, l.awayTeam.ID, l.fixtureID, l.goals)
}

// Goals 进球事件快照
func (l *EventLedger) Goals() []*GoalEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*GoalEvent, len(l.goals))
	for i, g := range l.goals {
		cp := *g
		out[i] = &cp
	}
	return out
}

// Cards 牌事件快照
func (l *EventLedger) Cards() []*CardEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*CardEvent, len(l.cards))
	for i, c := range l.cards {
		cp := *c
		out[i] = &cp
	}
	return out
}

// PlayerSessions 上场时间段快照
func (l *EventLedger) PlayerSessions() []*PlayerTimeSession {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*PlayerTimeSession, len(l.timeSlices))
	for i, s := range l.timeSlices {
		cp := *s
		out[i] = &cp
	}
	return out
}

// AuditWarnings 审计记录快照
func (l *EventLedger) AuditWarnings() []ConsistencyWarning {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ConsistencyWarning(nil), l.auditWarnings...)
}

// UnsyncedCounts 各分类未保存数量。上场时间段在结束前不参与计数。
func (l *EventLedger) UnsyncedCounts() UnsyncedCounts {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var counts UnsyncedCounts
	for _, g := range l.goals {
		if g.SyncStatus.NeedsSync() {
			counts.Goals++
		}
	}
	for _, c := range l.cards {
		if c.SyncStatus.NeedsSync() {
			counts.Cards++
		}
	}
	for _, s := range l.timeSlices {
		if !s.IsOpen() && s.SyncStatus.NeedsSync() {
			counts.PlayerTimes++
		}
	}
	return counts
}

// SyncBatch 一次批量保存的快照，按分类分组
type SyncBatch struct {
	Goals       []*GoalEvent
	Cards       []*CardEvent
	PlayerTimes []*PlayerTimeSession
}

// Size 快照内事件总数
func (b *SyncBatch) Size() int {
	return len(b.Goals) + len(b.Cards) + len(b.PlayerTimes)
}

// CollectForSync 取出所有待保存事件的副本并原子标记为 Saving。
// 保存进行中新加入的事件保持 Unsaved，由下一轮同步处理。
func (l *EventLedger) CollectForSync() *SyncBatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := &SyncBatch{}
	for _, g := range l.goals {
		if g.SyncStatus.NeedsSync() {
			g.SyncStatus = SyncStatusSaving
			cp := *g
			batch.Goals = append(batch.Goals, &cp)
		}
	}
	for _, c := range l.cards {
		if c.SyncStatus.NeedsSync() {
			c.SyncStatus = SyncStatusSaving
			cp := *c
			batch.Cards = append(batch.Cards, &cp)
		}
	}
	for _, s := range l.timeSlices {
		if !s.IsOpen() && s.SyncStatus.NeedsSync() {
			s.SyncStatus = SyncStatusSaving
			cp := *s
			batch.PlayerTimes = append(batch.PlayerTimes, &cp)
		}
	}
	return batch
}

// MarkSynced 单条写入成功，记录远端 ID
func (l *EventLedger) MarkSynced(category, id string, remoteID int64) {
	l.setStatus(category, id, SyncStatusSynced, remoteID)
}

// MarkError 单条写入失败，等待手动或定时重试
func (l *EventLedger) MarkError(category, id string) {
	l.setStatus(category, id, SyncStatusError, 0)
}

func (l *EventLedger) setStatus(category, id string, status SyncStatus, remoteID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch category {
	case CategoryGoals:
		for _, g := range l.goals {
			if g.ID == id {
				g.SyncStatus = status
				if remoteID != 0 {
					g.RemoteID = remoteID
				}
				return
			}
		}
	case CategoryCards:
		for _, c := range l.cards {
			if c.ID == id {
				c.SyncStatus = status
				if remoteID != 0 {
					c.RemoteID = remoteID
				}
				return
			}
		}
	case CategoryPlayerTimes:
		for _, s := range l.timeSlices {
			if s.ID == id {
				s.SyncStatus = status
				if remoteID != 0 {
					s.RemoteID = remoteID
				}
				return
			}
		}
	}
}

func validateGoalInput(input GoalInput) error {
	if input.Team.ID == "" {
		return &ValidationError{Field: "teamId", Message: "team id is required"}
	}
	if input.Player.ID == "" {
		return &ValidationError{Field: "playerId", Message: "player id is required"}
	}
	if input.MatchTime < 0 {
		return &ValidationError{Field: "matchTime", Message: "match time must not be negative"}
	}
	if input.AssistPlayer != nil {
		if input.IsOwnGoal {
			return &ValidationError{Field: "assistPlayer", Message: "an own goal cannot have an assist"}
		}
		if input.AssistPlayer.ID == input.Player.ID {
			return &ValidationError{Field: "assistPlayer", Message: "assist player must differ from the scorer"}
		}
	}
	return nil
}

func validateCardInput(input CardInput) error {
	if input.Team.ID == "" {
		return &ValidationError{Field: "teamId", Message: "team id is required"}
	}
	if input.Player.ID == "" {
		return &ValidationError{Field: "playerId", Message: "player id is required"}
	}
	if input.MatchTime < 0 {
		return &ValidationError{Field: "matchTime", Message: "match time must not be negative"}
	}
	if input.CardType != CardTypeYellow && input.CardType != CardTypeRed {
		return &ValidationError{Field: "cardType", Message: "card type must be yellow or red"}
	}
	return nil
}
