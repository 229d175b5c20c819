package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"refmatch-service/logger"
)

// ReconnectConfig 重连配置
type ReconnectConfig struct {
	MaxRetries    int           // 最大重试次数 (0 = 无限重试)
	InitialDelay  time.Duration // 初始延迟
	MaxDelay      time.Duration // 最大延迟
	BackoffFactor float64       // 退避因子
}

// DefaultReconnectConfig 默认重连配置
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxRetries:    0,                // 无限重试
		InitialDelay:  1 * time.Second,  // 1秒
		MaxDelay:      60 * time.Second, // 60秒
		BackoffFactor: 2.0,              // 指数退避
	}
}

// AMQPEventPublisher EventBroker 的 AMQP 实现。
// 已同步的比赛事件发布到 topic exchange，供下游统计/推送服务消费。
// 连接断开后自动按指数退避重连。
type AMQPEventPublisher struct {
	url       string
	exchange  string
	reconnect *ReconnectConfig

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	done chan struct{}
}

// NewAMQPEventPublisher 建立 AMQP 连接、声明 exchange 并启动重连监控
func NewAMQPEventPublisher(url, exchange string) (*AMQPEventPublisher, error) {
	p := &AMQPEventPublisher{
		url:       url,
		exchange:  exchange,
		reconnect: DefaultReconnectConfig(),
		done:      make(chan struct{}),
	}

	logger.Printf("[AMQPPublisher] Connecting to AMQP...")

	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}

	go p.monitorConnection()

	return p, nil
}

// connect 建立连接并声明 exchange
func (p *AMQPEventPublisher) connect() error {
	config := amqp.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	}

	conn, err := amqp.DialConfig(p.url, config)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	logger.Printf("[AMQPPublisher] ✅ Connected, exchange %q declared", p.exchange)

	return nil
}

// monitorConnection 监控连接状态并自动重连
func (p *AMQPEventPublisher) monitorConnection() {
	retryCount := 0
	currentDelay := p.reconnect.InitialDelay

	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()

		closeErr := <-conn.NotifyClose(make(chan *amqp.Error))

		select {
		case <-p.done:
			return
		default:
		}

		if closeErr == nil {
			// 正常关闭
			logger.Println("[AMQPPublisher] Connection closed normally")
			return
		}

		logger.Errorf("[AMQPPublisher] ⚠️  Connection lost: %v", closeErr)

		for {
			if p.reconnect.MaxRetries > 0 && retryCount >= p.reconnect.MaxRetries {
				logger.Errorf("[AMQPPublisher] ❌ Max retries (%d) reached, giving up", p.reconnect.MaxRetries)
				return
			}

			retryCount++
			logger.Printf("[AMQPPublisher] 🔄 Reconnecting in %v (attempt %d)...", currentDelay, retryCount)

			select {
			case <-time.After(currentDelay):
			case <-p.done:
				return
			}

			if err := p.connect(); err != nil {
				logger.Errorf("[AMQPPublisher] ❌ Reconnect failed: %v", err)

				// 指数退避
				currentDelay = time.Duration(float64(currentDelay) * p.reconnect.BackoffFactor)
				if currentDelay > p.reconnect.MaxDelay {
					currentDelay = p.reconnect.MaxDelay
				}
				continue
			}

			logger.Println("[AMQPPublisher] ✅ Reconnected successfully")
			retryCount = 0
			currentDelay = p.reconnect.InitialDelay
			break
		}
	}
}

// Produce 实现 EventBroker 接口，Topic 作为 routing key
func (p *AMQPEventPublisher) Produce(msg BrokerMessage) error {
	p.mu.Lock()
	channel := p.channel
	p.mu.Unlock()

	if channel == nil {
		return fmt.Errorf("publish to %s failed: not connected", msg.Topic)
	}

	err := channel.Publish(
		p.exchange,
		msg.Topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.Key,
			Timestamp:    time.Now(),
			Body:         msg.Value,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Close 关闭连接并停止重连监控
func (p *AMQPEventPublisher) Close() error {
	logger.Println("[AMQPPublisher] Closing AMQP connection...")
	close(p.done)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
