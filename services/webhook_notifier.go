package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"refmatch-service/logger"
)

// WebhookNotifier 运维告警通知器。同步失败和数据不一致推送到配置的 webhook。
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	enabled    bool
}

// NewWebhookNotifier 创建通知器，URL 为空时禁用
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	enabled := webhookURL != ""
	if enabled {
		logger.Printf("[Notifier] Initialized with webhook")
	} else {
		logger.Printf("[Notifier] Disabled (no webhook URL)")
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		enabled:    enabled,
	}
}

// webhookPayload 通知消息结构
type webhookPayload struct {
	Text string `json:"text"`
}

// SendText 发送文本通知
func (n *WebhookNotifier) SendText(text string) error {
	if !n.enabled {
		return nil
	}

	jsonData, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// NotifySyncFailure 批量保存出现失败条目时通知
func (n *WebhookNotifier) NotifySyncFailure(fixtureID string, failed, attempted int) {
	if err := n.SendText(fmt.Sprintf(
		"❌ Batch save for fixture %s: %d/%d items failed, left in error state for retry",
		fixtureID, failed, attempted,
	)); err != nil {
		logger.Errorf("[Notifier] Failed to send sync failure notification: %v", err)
	}
}

// NotifyConsistencyWarning 数据不一致时通知
func (n *WebhookNotifier) NotifyConsistencyWarning(w ConsistencyWarning) {
	if err := n.SendText(fmt.Sprintf("⚠️ Consistency warning %s", w.String())); err != nil {
		logger.Errorf("[Notifier] Failed to send consistency warning: %v", err)
	}
}
