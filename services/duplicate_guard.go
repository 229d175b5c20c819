package services

// DuplicateGuard 查重判定。纯函数：只依赖账本快照和候选事件，不持有任何状态。
// 用于拦截 UI 双击或网络重试导致的重复提交。
//
// 等价规则:
//   - 进球: playerId + teamId + matchTime + kind + isOwnGoal 全部相等
//   - 牌:   playerId + teamId + matchTime + cardType 全部相等
//
// 注意: 同一球员在不同时间的两个进球不会被判重。
type DuplicateGuard struct{}

// FindGoalConflict 在已有进球事件中查找与候选事件等价的记录，无冲突返回 nil
func (DuplicateGuard) FindGoalConflict(existing []*GoalEvent, candidate *GoalEvent) *GoalEvent {
	for _, e := range existing {
		if e.PlayerID == candidate.PlayerID &&
			e.TeamID == candidate.TeamID &&
			e.MatchTime == candidate.MatchTime &&
			e.Kind == candidate.Kind &&
			e.IsOwnGoal == candidate.IsOwnGoal {
			return e
		}
	}
	return nil
}

// FindCardConflict 在已有牌事件中查找与候选事件等价的记录，无冲突返回 nil
func (DuplicateGuard) FindCardConflict(existing []*CardEvent, candidate *CardEvent) *CardEvent {
	for _, e := range existing {
		if e.PlayerID == candidate.PlayerID &&
			e.TeamID == candidate.TeamID &&
			e.MatchTime == candidate.MatchTime &&
			e.CardType == candidate.CardType {
			return e
		}
	}
	return nil
}
