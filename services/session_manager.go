package services

import (
	"context"
	"sync"
	"time"

	"refmatch-service/logger"
)

// MatchSessionManager 管理裁判会话生命周期。
// 每场比赛同一时刻只允许一个会话，空闲过久的会话自动清理。
type MatchSessionManager struct {
	store      RemoteStore
	broker     EventBroker
	notifier   *WebhookNotifier
	failureLog SyncFailureLog

	autoSyncInterval time.Duration
	writeTimeout     time.Duration
	confirmDebounce  time.Duration

	sessions map[string]*MatchSession
	mu       sync.RWMutex

	// 自动清理配置
	cleanupInterval time.Duration
	idleLimit       time.Duration

	done chan struct{}
}

// NewMatchSessionManager 创建会话管理器
func NewMatchSessionManager(store RemoteStore, autoSyncInterval, writeTimeout, confirmDebounce, idleLimit time.Duration) *MatchSessionManager {
	if idleLimit <= 0 {
		idleLimit = 6 * time.Hour
	}
	return &MatchSessionManager{
		store:            store,
		autoSyncInterval: autoSyncInterval,
		writeTimeout:     writeTimeout,
		confirmDebounce:  confirmDebounce,
		sessions:         make(map[string]*MatchSession),
		cleanupInterval:  10 * time.Minute,
		idleLimit:        idleLimit,
		done:             make(chan struct{}),
	}
}

// SetBroker 设置下游事件发布器，透传给每个会话的同步管理器
func (m *MatchSessionManager) SetBroker(broker EventBroker) {
	m.broker = broker
}

// SetNotifier 设置运维告警通知器
func (m *MatchSessionManager) SetNotifier(notifier *WebhookNotifier) {
	m.notifier = notifier
}

// SetFailureLog 设置同步失败记录器
func (m *MatchSessionManager) SetFailureLog(log SyncFailureLog) {
	m.failureLog = log
}

// CreateSession 为比赛创建裁判会话。该比赛已有会话时返回 ErrSessionExists。
func (m *MatchSessionManager) CreateSession(fixtureID string, homeTeam, awayTeam TeamRef) (*MatchSession, error) {
	if fixtureID == "" {
		return nil, &ValidationError{Field: "fixtureId", Message: "fixture id is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[fixtureID]; exists {
		return nil, ErrSessionExists
	}

	session := NewMatchSession(fixtureID, homeTeam, awayTeam, m.store, m.writeTimeout, m.confirmDebounce)
	session.Sync().SetBroker(m.broker)
	session.Sync().SetNotifier(m.notifier)
	session.Sync().SetFailureLog(m.failureLog)
	session.StartAutoSync(m.autoSyncInterval)

	m.sessions[fixtureID] = session

	logger.Printf("[SessionManager] ✅ Created referee session for fixture %s (%s vs %s)",
		fixtureID, homeTeam.Name, awayTeam.Name)

	return session, nil
}

// GetSession 获取比赛的会话
func (m *MatchSessionManager) GetSession(fixtureID string) (*MatchSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[fixtureID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession 结束比赛会话。关闭前尝试最后一次保存，失败不阻止关闭。
func (m *MatchSessionManager) CloseSession(fixtureID string) error {
	m.mu.Lock()
	session, exists := m.sessions[fixtureID]
	if exists {
		delete(m.sessions, fixtureID)
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	if session.Sync().HasUnsavedChanges() {
		ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout*3)
		defer cancel()
		if _, err := session.Sync().BatchSave(ctx); err != nil {
			logger.Errorf("[SessionManager] Final save for fixture %s failed: %v", fixtureID, err)
		}
	}

	session.Close()
	logger.Printf("[SessionManager] 🛑 Closed referee session for fixture %s", fixtureID)
	return nil
}

// Sessions 所有活跃会话
func (m *MatchSessionManager) Sessions() []*MatchSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*MatchSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Stats 会话统计
func (m *MatchSessionManager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unsaved := 0
	for _, s := range m.sessions {
		unsaved += s.Ledger().UnsyncedCounts().Total()
	}

	return map[string]interface{}{
		"active_sessions": len(m.sessions),
		"unsaved_items":   unsaved,
	}
}

// Start 启动空闲会话清理循环
func (m *MatchSessionManager) Start() {
	logger.Printf("[SessionManager] 🚀 Started with cleanup interval: %v", m.cleanupInterval)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleSessions()
		case <-m.done:
			logger.Println("[SessionManager] Stopped")
			return
		}
	}
}

// Stop 停止管理器并关闭所有会话
func (m *MatchSessionManager) Stop() {
	close(m.done)

	m.mu.Lock()
	fixtures := make([]string, 0, len(m.sessions))
	for fixtureID := range m.sessions {
		fixtures = append(fixtures, fixtureID)
	}
	m.mu.Unlock()

	for _, fixtureID := range fixtures {
		if err := m.CloseSession(fixtureID); err != nil {
			logger.Errorf("[SessionManager] Failed to close session %s: %v", fixtureID, err)
		}
	}
}

// cleanupIdleSessions 清理超过空闲阈值的会话
func (m *MatchSessionManager) cleanupIdleSessions() {
	m.mu.RLock()
	var idle []string
	now := time.Now()
	for fixtureID, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.idleLimit {
			idle = append(idle, fixtureID)
		}
	}
	m.mu.RUnlock()

	if len(idle) == 0 {
		return
	}

	logger.Printf("[SessionManager] 🧹 Cleaning up %d idle sessions", len(idle))

	for _, fixtureID := range idle {
		if err := m.CloseSession(fixtureID); err != nil {
			logger.Errorf("[SessionManager] Cleanup of session %s failed: %v", fixtureID, err)
		}
	}
}
