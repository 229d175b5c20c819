package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// 数据库配置
	DatabaseURL string

	// 服务器配置
	Port string

	// AMQP 事件发布配置 (为空则使用内存 Broker)
	AMQPURL      string
	AMQPExchange string

	// 运维通知 Webhook (为空则禁用)
	OpsWebhook string

	// 其他配置
	Environment string

	// 同步配置
	AutoSyncInterval time.Duration // 自动保存间隔
	SyncWriteTimeout time.Duration // 单条写入超时
	ConfirmDebounce  time.Duration // 确认操作防抖间隔
	SessionIdleLimit time.Duration // 空闲会话清理阈值
}

func Load() *Config {
	// 本地开发时从 .env 读取环境变量，文件不存在则忽略
	_ = godotenv.Load()

	return &Config{
		// 数据库配置
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/refmatch?sslmode=disable"),

		// 服务器配置
		Port: getEnv("PORT", "8080"),

		// AMQP 配置
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "refmatch.events"),

		// 通知配置
		OpsWebhook: getEnv("OPS_WEBHOOK", ""),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),

		// 同步配置
		AutoSyncInterval: getEnvDuration("AUTO_SYNC_INTERVAL_SECONDS", 180) * time.Second,
		SyncWriteTimeout: getEnvDuration("SYNC_WRITE_TIMEOUT_SECONDS", 10) * time.Second,
		ConfirmDebounce:  getEnvDuration("CONFIRM_DEBOUNCE_MS", 1300) * time.Millisecond,
		SessionIdleLimit: getEnvDuration("SESSION_IDLE_LIMIT_HOURS", 6) * time.Hour,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultValue)
	}
	var result int
	fmt.Sscanf(value, "%d", &result)
	if result <= 0 {
		return time.Duration(defaultValue)
	}
	return time.Duration(result)
}
