package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRemoteStore 模拟远端存储，可按 local_id 注入单条失败
type fakeRemoteStore struct {
	mu sync.Mutex

	nextID    int64
	created   map[string]int64 // local_id -> remote_id
	updates   []int64
	failLocal map[string]bool

	remoteHome, remoteAway int
	hasRemoteScore         bool
	scorePushes            []Score

	statGoals   map[string]int
	statAssists map[string]int

	failures []string
}

func newFakeRemoteStore() *fakeRemoteStore {
	return &fakeRemoteStore{
		created:     make(map[string]int64),
		failLocal:   make(map[string]bool),
		statGoals:   make(map[string]int),
		statAssists: make(map[string]int),
	}
}

func (f *fakeRemoteStore) CreateMatchEvent(ctx context.Context, fixtureID, eventType, playerID, teamID string, matchTime int, metadata map[string]string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	localID := metadata["local_id"]
	if f.failLocal[localID] {
		return 0, errors.New("simulated network error")
	}

	f.nextID++
	f.created[localID] = f.nextID
	return f.nextID, nil
}

func (f *fakeRemoteStore) UpdateMatchEvent(ctx context.Context, remoteID int64, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, remoteID)
	return nil
}

func (f *fakeRemoteStore) UpdatePlayerAggregateStats(ctx context.Context, playerID string, goalsDelta, assistsDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statGoals[playerID] += goalsDelta
	f.statAssists[playerID] += assistsDelta
	return nil
}

func (f *fakeRemoteStore) GetFixtureScore(ctx context.Context, fixtureID string) (int, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteHome, f.remoteAway, f.hasRemoteScore, nil
}

func (f *fakeRemoteStore) UpdateFixtureScore(ctx context.Context, fixtureID string, home, away int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteHome, f.remoteAway = home, away
	f.hasRemoteScore = true
	f.scorePushes = append(f.scorePushes, Score{Home: home, Away: away})
	return nil
}

func (f *fakeRemoteStore) RecordSyncFailure(ctx context.Context, fixtureID, localID, category, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, localID)
	return nil
}

func newTestSyncManager(t *testing.T) (*EventLedger, *fakeRemoteStore, *BatchSyncManager) {
	t.Helper()
	ledger := newTestLedger()
	store := newFakeRemoteStore()
	manager := NewBatchSyncManager(ledger, store, time.Second, 50*time.Millisecond)
	manager.SetFailureLog(store)
	return ledger, store, manager
}

func TestBatchSaveAllSucceed(t *testing.T) {
	ledger, store, manager := newTestSyncManager(t)

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 300, AssistPlayer: &p2})
	ledger.AddCard(CardInput{Team: teamB, Player: p9, MatchTime: 900, CardType: CardTypeYellow})
	ledger.StartPlayerSession("p1", "team-a", 0)
	ledger.EndPlayerSession("p1", 1200)

	if !manager.HasUnsavedChanges() {
		t.Fatal("Expected unsaved changes before save")
	}

	report, err := manager.BatchSave(context.Background())
	if err != nil {
		t.Fatalf("BatchSave failed: %v", err)
	}

	if report.Attempted != 4 || report.Synced != 4 || report.Failed != 0 {
		t.Errorf("Expected 4/4 synced, got %+v", report)
	}
	if manager.HasUnsavedChanges() {
		t.Error("Expected no unsaved changes after full save")
	}

	for _, g := range ledger.Goals() {
		if g.SyncStatus != SyncStatusSynced || g.RemoteID == 0 {
			t.Errorf("Expected goal synced with remote id, got %s/%d", g.SyncStatus, g.RemoteID)
		}
	}

	// 球员统计: p1 一球，p2 一助攻
	if store.statGoals["p1"] != 1 || store.statAssists["p2"] != 1 {
		t.Errorf("Expected aggregate stats goal=1 assist=1, got %v / %v", store.statGoals, store.statAssists)
	}

	// 保存后推送了本地现算比分
	if !store.hasRemoteScore || store.remoteHome != 1 || store.remoteAway != 0 {
		t.Errorf("Expected remote score 1:0, got %d:%d", store.remoteHome, store.remoteAway)
	}
}

func TestBatchSavePartialFailureIsolated(t *testing.T) {
	ledger, store, manager := newTestSyncManager(t)

	g1, _, _ := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 100})
	g2, _, _ := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 200})
	g3, _, _ := ledger.AddGoal(GoalInput{Team: teamB, Player: p9, MatchTime: 300})

	// 只有第二条失败
	store.failLocal[g2.ID] = true

	report, err := manager.BatchSave(context.Background())
	if err != nil {
		t.Fatalf("Expected partial failure not to surface as error, got %v", err)
	}

	if report.Synced != 2 || report.Failed != 1 {
		t.Fatalf("Expected 2 synced / 1 failed, got %+v", report)
	}
	if len(report.FailedIDs) != 1 || report.FailedIDs[0] != g2.ID {
		t.Errorf("Expected failed id %s, got %v", g2.ID, report.FailedIDs)
	}

	status := map[string]SyncStatus{}
	for _, g := range ledger.Goals() {
		status[g.ID] = g.SyncStatus
	}
	if status[g1.ID] != SyncStatusSynced || status[g3.ID] != SyncStatusSynced {
		t.Error("Expected unaffected items to be synced")
	}
	if status[g2.ID] != SyncStatusError {
		t.Errorf("Expected failed item in error state, got %s", status[g2.ID])
	}

	// 失败被落库留痕
	if len(store.failures) != 1 || store.failures[0] != g2.ID {
		t.Errorf("Expected failure record for %s, got %v", g2.ID, store.failures)
	}

	// 故障恢复后重试只处理失败条目
	store.failLocal = map[string]bool{}
	retry, err := manager.BatchSave(context.Background())
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retry.Attempted != 1 || retry.Synced != 1 {
		t.Errorf("Expected retry of exactly 1 item, got %+v", retry)
	}
	if manager.HasUnsavedChanges() {
		t.Error("Expected everything synced after retry")
	}
}

func TestBatchSaveAllFailedReturnsSyncError(t *testing.T) {
	ledger, store, manager := newTestSyncManager(t)

	goal, _, _ := ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 100})
	store.failLocal[goal.ID] = true

	report, err := manager.BatchSave(context.Background())
	if err == nil {
		t.Fatal("Expected SyncError when every item fails")
	}
	if !errors.Is(err, ErrSyncFailed) {
		t.Errorf("Expected error to unwrap to ErrSyncFailed, got %v", err)
	}
	if report == nil || report.Failed != 1 {
		t.Errorf("Expected report alongside error, got %+v", report)
	}
}

func TestBatchSaveEmptyLedger(t *testing.T) {
	_, _, manager := newTestSyncManager(t)

	report, err := manager.BatchSave(context.Background())
	if err != nil {
		t.Fatalf("Empty save failed: %v", err)
	}
	if report.Attempted != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}

func TestScoreReconciliationPrefersLocal(t *testing.T) {
	ledger, store, manager := newTestSyncManager(t)

	// 远端缓存着一个过期比分
	store.remoteHome, store.remoteAway = 3, 3
	store.hasRemoteScore = true

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 100})

	if _, err := manager.BatchSave(context.Background()); err != nil {
		t.Fatalf("BatchSave failed: %v", err)
	}

	// 本地现算比分覆盖远端旧值
	if store.remoteHome != 1 || store.remoteAway != 0 {
		t.Errorf("Expected local score 1:0 to overwrite stale remote, got %d:%d", store.remoteHome, store.remoteAway)
	}
}

func TestMutationDuringSaveStaysUnsaved(t *testing.T) {
	ledger, _, manager := newTestSyncManager(t)

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 100})
	batch := ledger.CollectForSync()
	if batch.Size() != 1 {
		t.Fatalf("Expected 1 item in flight, got %d", batch.Size())
	}

	// 保存进行中账本仍可写入，新事件保持 Unsaved
	goal, _, err := ledger.AddGoal(GoalInput{Team: teamB, Player: p9, MatchTime: 400})
	if err != nil {
		t.Fatalf("Add during save failed: %v", err)
	}
	if goal.SyncStatus != SyncStatusUnsaved {
		t.Errorf("Expected new goal unsaved, got %s", goal.SyncStatus)
	}
	if !manager.HasUnsavedChanges() {
		t.Error("Expected new goal to be picked up by next cycle")
	}
}

func TestGateConfirmDebounce(t *testing.T) {
	_, _, manager := newTestSyncManager(t)

	if err := manager.GateConfirm(); err != nil {
		t.Fatalf("First confirm should pass: %v", err)
	}
	if err := manager.GateConfirm(); err != ErrConfirmThrottled {
		t.Errorf("Expected immediate second confirm throttled, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if err := manager.GateConfirm(); err != nil {
		t.Errorf("Expected confirm to pass after debounce window: %v", err)
	}
}

func TestBatchSavePublishesSyncedEvents(t *testing.T) {
	ledger, _, manager := newTestSyncManager(t)

	broker := NewInMemoryBroker()
	defer broker.Close()
	manager.SetBroker(broker)

	goals := broker.Consume(EventTopic(CategoryGoals))

	ledger.AddGoal(GoalInput{Team: teamA, Player: p1, MatchTime: 100})

	if _, err := manager.BatchSave(context.Background()); err != nil {
		t.Fatalf("BatchSave failed: %v", err)
	}

	select {
	case msg := <-goals:
		if msg.Key != "fx-1" {
			t.Errorf("Expected message keyed by fixture, got %s", msg.Key)
		}
	default:
		t.Error("Expected a goal event published to the broker")
	}
}
