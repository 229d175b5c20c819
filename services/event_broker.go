package services

import (
	"fmt"
)

// BrokerMessage 发布到下游的消息
type BrokerMessage struct {
	Topic string
	Key   string // 比赛 ID
	Value []byte // JSON 消息体
}

// EventBroker 已同步事件的下游发布接口
type EventBroker interface {
	// Produce 发送消息到指定的 Topic
	Produce(msg BrokerMessage) error
	// Close 关闭 Broker 连接
	Close() error
}

// EventTopic 根据事件分类获取 Topic 名称
func EventTopic(category string) string {
	return fmt.Sprintf("refmatch-event-%s", category)
}
