package services

import (
	"sync"

	"refmatch-service/logger"
)

// InMemoryBroker EventBroker 的内存实现，开发和测试环境替代 AMQP
type InMemoryBroker struct {
	// 存储每个 Topic 对应的消费者通道列表
	consumers map[string][]chan BrokerMessage
	mu        sync.RWMutex
}

// NewInMemoryBroker 创建 InMemoryBroker 实例
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		consumers: make(map[string][]chan BrokerMessage),
	}
}

// Produce 实现 EventBroker 接口
func (b *InMemoryBroker) Produce(msg BrokerMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	consumerChans, ok := b.consumers[msg.Topic]
	if !ok || len(consumerChans) == 0 {
		// 没有消费者时直接丢弃，发布是尽力而为的
		return nil
	}

	for _, ch := range consumerChans {
		// 通道满了则丢弃，发布不允许阻塞同步流程
		select {
		case ch <- msg:
		default:
			logger.Printf("[InMemoryBroker] ⚠️ Topic %s consumer channel full. Message dropped.", msg.Topic)
		}
	}

	return nil
}

// Consume 订阅指定 Topic，返回消息通道 (仅内存实现提供，测试用)
func (b *InMemoryBroker) Consume(topic string) <-chan BrokerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	consumerChan := make(chan BrokerMessage, 256)
	b.consumers[topic] = append(b.consumers[topic], consumerChan)

	return consumerChan
}

// Close 实现 EventBroker 接口
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, chans := range b.consumers {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.consumers = make(map[string][]chan BrokerMessage)

	return nil
}
