package services

import (
	"errors"
	"testing"
)

var (
	teamA = TeamRef{ID: "team-a", Name: "Team A"}
	teamB = TeamRef{ID: "team-b", Name: "Team B"}
	p1    = PlayerRef{ID: "p1", Name: "Player One", TeamID: "team-a"}
	p2    = PlayerRef{ID: "p2", Name: "Player Two", TeamID: "team-a"}
	p9    = PlayerRef{ID: "p9", Name: "Player Nine", TeamID: "team-b"}
)

func newTestLedger() *EventLedger {
	return NewEventLedger("fx-1", teamA, teamB)
}

func TestAddGoalDuplicateRejected(t *testing.T) {
	ledger := newTestLedger()

	input := GoalInput{Team: teamA, Player: p1, MatchTime: 300}

	if _, _, err := ledger.AddGoal(input); err != nil {
		t.Fatalf("First add failed: %v", err)
	}

	// 完全相同的再次提交必须被拒绝且不产生变更
	_, _, err := ledger.AddGoal(input)
	if err == nil {
		t.Fatal("Expected duplicate error on identical resubmission")
	}

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateError, got %T", err)
	}
	if dup.ConflictID == "" {
		t.Error("Expected conflict id to be carried in the error")
	}
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Error("Expected error to unwrap to ErrDuplicateEvent")
	}

	if got := len(ledger.Goals()); got != 1 {
		t.Errorf("Expected 1 goal in ledger, got %d", got)
	}

	score, _ := ledger.Score()
	if score.Home != 1 || score.Away != 0 {
		t.Errorf("Expected score 1:0, got %d:%d", score.Home, score.Away)
	}
}

func TestAddGoalWithAssist(t *testing.T) {
	ledger := newTestLedger()

	goal, assist, err := ledger.AddGoal(GoalInput{
		Team: teamA, Player: p1, MatchTime: 300, AssistPlayer: &p2,
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if assist == nil {
		t.Fatal("Expected assist event to be created")
	}
	if assist.Kind != GoalKindAssist {
		t.Errorf("Expected assist kind, got %s", assist.Kind)
	}
	if assist.IsOwnGoal {
		t.Error("Assist event must never be an own goal")
	}
	if goal.AssistPlayerID != p2.ID {
		t.Errorf("Expected goal to reference assist player %s, got %s", p2.ID, goal.AssistPlayerID)
	}

	score, _ := ledger.Score()
	if score.Home != 1 {
		t.Errorf("Expected assist not to score, got home=%d", score.Home)
	}
}

func TestAddGoalValidation(t *testing.T) {
	ledger := newTestLedger()

	cases := []GoalInput{
		{Player: p1, MatchTime: 10},                                                  // 缺队伍
		{Team: teamA, MatchTime: 10},                                                 // 缺球员
		{Team: teamA, Player: p1, MatchTime: -5},                                     // 负时间
		{Team: teamA, Player: p1, MatchTime: 10, IsOwnGoal: true, AssistPlayer: &p2}, // 乌龙带助攻
		{Team: teamA, Player: p1, MatchTime: 10, AssistPlayer: &p1},                  // 自己助攻自己
	}

	for i, input := range cases {
		_, _, err := ledger.AddGoal(input)
		if err == nil {
			t.Errorf("Case %d: expected validation error", i)
			continue
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("Case %d: expected ErrValidationFailed, got %v", i, err)
		}
	}

	if len(ledger.Goals()) != 0 {
		t.Error("Expected no goals after rejected inputs")
	}
}

func TestSecondYellowSynthesizesOneRed(t *testing.T) {
	ledger := newTestLedger()

	first, err := ledger.AddCard(CardInput{Team: teamA, Player: p1, MatchTime: 600, CardType: CardTypeYellow})
	if err != nil {
		t.Fatalf("First yellow failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected 1 event for first yellow, got %d", len(first))
	}

	second, err := ledger.AddCard(CardInput{Team: teamA, Player: p1, MatchTime: 2400, CardType: CardTypeYellow})
	if err != nil {
		t.Fatalf("Second yellow failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("Expected yellow + synthesized red, got %d events", len(second))
	}
	if second[1].CardType != CardTypeRed || !second[1].Synthesized {
		t.Errorf("Expected synthesized red card, got %+v", second[1])
	}

	reds := 0
	for _, c := range ledger.Cards() {
		if c.CardType == CardTypeRed {
			reds++
		}
	}
	if reds != 1 {
		t.Errorf("Expected exactly one red card, got %d", reds)
	}

	// 第三张黄牌不再合成红牌
	third, err := ledger.AddCard(CardInput{Team: teamA, Player: p1, MatchTime: 3000, CardType: CardTypeYellow})
	if err != nil {
		t.Fatalf("Third yellow failed: %v", err)
	}
	if len(third) != 1 {
		t.Errorf("Expected no additional red for third yellow, got %d events", len(third))
	}
}

func TestAddCardDuplicateRejected(t *testing.T) {
	ledger := newTestLedger()

	input := CardInput{Team: teamB, Player: p9, MatchTime: 900, CardType: CardTypeYellow}
	if _, err := ledger.AddCard(input); err != nil {
		t.Fatalf("First card failed: %v", err)
	}

	_, err := ledger.AddCard(input)
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("Expected duplicate error, got %v", err)
	}
	if len(ledger.Cards()) != 1 {
		t.Errorf("Expected 1 card, got %d", len(ledger.Cards()))
	}
}

func TestPlayerSessionSingleOpen(t *testing.T) {
	ledger := newTestLedger()

	if _, err := ledger.StartPlayerSession("p1", "team-a", 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 同一球员不允许第二个未结束时间段
	if _, err := ledger.StartPlayerSession("p1", "team-a", 60); err != ErrSessionOpen {
		t.Errorf("Expected ErrSessionOpen, got %v", err)
	}

	ended, err := ledger.EndPlayerSession("p1", 1500)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.AccumulatedSeconds != 1500 {
		t.Errorf("Expected 1500 accumulated seconds, got %d", ended.AccumulatedSeconds)
	}

	// 结束后可以重新上场
	if _, err := ledger.StartPlayerSession("p1", "team-a", 1800); err != nil {
		t.Errorf("Restart after end failed: %v", err)
	}

	if _, err := ledger.EndPlayerSession("p9", 100); err != ErrNoOpenSession {
		t.Errorf("Expected ErrNoOpenSession for player without open slice, got %v", err)
	}
}

func TestRemoveGoalRemovesPairedAssist(t *testing.T) {
	ledger := newTestLedger()

	goal, assist, err := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300, AssistPlayer: &p2})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// 进球和助攻成对入账，删除进球不允许留下孤儿助攻
	if err := ledger.RemoveEvent(goal.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := len(ledger.Goals()); got != 0 {
		t.Errorf("Expected paired assist removed with goal, got %d events", got)
	}
	if counts := ledger.UnsyncedCounts(); counts.Goals != 0 {
		t.Errorf("Expected 0 unsynced goal events after removal, got %d", counts.Goals)
	}
	if err := ledger.RemoveEvent(assist.ID); err != ErrEventNotFound {
		t.Errorf("Expected assist already gone, got %v", err)
	}
}

func TestRemoveAssistClearsGoalReference(t *testing.T) {
	ledger := newTestLedger()

	goal, assist, err := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300, AssistPlayer: &p2})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := ledger.RemoveEvent(assist.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	goals := ledger.Goals()
	if len(goals) != 1 || goals[0].ID != goal.ID {
		t.Fatalf("Expected goal to survive assist removal, got %d events", len(goals))
	}
	if goals[0].AssistPlayerID != "" {
		t.Errorf("Expected goal's assist reference cleared, got %q", goals[0].AssistPlayerID)
	}
}

func TestRemoveEventAndReset(t *testing.T) {
	ledger := newTestLedger()

	goal, _, err := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := ledger.RemoveEvent(goal.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := ledger.RemoveEvent(goal.ID); err != ErrEventNotFound {
		t.Errorf("Expected ErrEventNotFound on second remove, got %v", err)
	}

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300})
	ledger.AddCard(CardInput{Team: teamB, Player: p9, MatchTime: 900, CardType: CardTypeRed})
	ledger.StartPlayerSession("p2", "team-a", 0)

	ledger.Reset()

	if len(ledger.Goals()) != 0 || len(ledger.Cards()) != 0 || len(ledger.PlayerSessions()) != 0 {
		t.Error("Expected empty ledger after reset")
	}
	score, _ := ledger.Score()
	if score.Home != 0 || score.Away != 0 {
		t.Errorf("Expected 0:0 after reset, got %d:%d", score.Home, score.Away)
	}
}

func TestUnsyncedCounts(t *testing.T) {
	ledger := newTestLedger()

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300, AssistPlayer: &p2})
	ledger.AddCard(CardInput{Team: teamB, Player: p9, MatchTime: 900, CardType: CardTypeYellow})
	ledger.StartPlayerSession("p1", "team-a", 0)

	counts := ledger.UnsyncedCounts()
	if counts.Goals != 2 {
		t.Errorf("Expected 2 unsynced goal events (goal+assist), got %d", counts.Goals)
	}
	if counts.Cards != 1 {
		t.Errorf("Expected 1 unsynced card, got %d", counts.Cards)
	}
	// 未结束的时间段不进入待保存计数
	if counts.PlayerTimes != 0 {
		t.Errorf("Expected open session not to count, got %d", counts.PlayerTimes)
	}

	ledger.EndPlayerSession("p1", 1200)
	if got := ledger.UnsyncedCounts().PlayerTimes; got != 1 {
		t.Errorf("Expected 1 unsynced player time after end, got %d", got)
	}
}

func TestCollectForSyncMarksSaving(t *testing.T) {
	ledger := newTestLedger()

	goal, _, _ := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300})

	batch := ledger.CollectForSync()
	if batch.Size() != 1 {
		t.Fatalf("Expected batch of 1, got %d", batch.Size())
	}

	for _, g := range ledger.Goals() {
		if g.SyncStatus != SyncStatusSaving {
			t.Errorf("Expected saving status, got %s", g.SyncStatus)
		}
	}

	// Saving 状态的条目不会被重复取走
	if again := ledger.CollectForSync(); again.Size() != 0 {
		t.Errorf("Expected second collect to be empty, got %d", again.Size())
	}

	ledger.MarkError(CategoryGoals, goal.ID)
	if retry := ledger.CollectForSync(); retry.Size() != 1 {
		t.Errorf("Expected error item to be collected for retry, got %d", retry.Size())
	}

	ledger.MarkSynced(CategoryGoals, goal.ID, 42)
	for _, g := range ledger.Goals() {
		if g.SyncStatus != SyncStatusSynced || g.RemoteID != 42 {
			t.Errorf("Expected synced with remote id 42, got %s/%d", g.SyncStatus, g.RemoteID)
		}
	}
}
