package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"refmatch-service/config"
	"refmatch-service/database"
	"refmatch-service/services"
	"refmatch-service/web"
)

func main() {
	log.Println("Starting Refmatch Sync Service...")

	// 加载配置
	cfg := config.Load()

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database connected and migrated")

	// 远端存储 (引擎的系统记录)
	remoteStore := services.NewPostgresRemoteStore(db)

	// 运维通知器
	notifier := services.NewWebhookNotifier(cfg.OpsWebhook)

	// 事件发布器: 配置了 AMQP 用 AMQP，否则用内存 Broker
	var broker services.EventBroker
	if cfg.AMQPURL != "" {
		amqpBroker, err := services.NewAMQPEventPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to connect AMQP publisher: %v", err)
		}
		broker = amqpBroker
	} else {
		log.Println("AMQP_URL not set, using in-memory broker")
		broker = services.NewInMemoryBroker()
	}
	defer broker.Close()

	// 会话管理器
	sessionManager := services.NewMatchSessionManager(
		remoteStore,
		cfg.AutoSyncInterval,
		cfg.SyncWriteTimeout,
		cfg.ConfirmDebounce,
		cfg.SessionIdleLimit,
	)
	sessionManager.SetBroker(broker)
	sessionManager.SetNotifier(notifier)
	sessionManager.SetFailureLog(remoteStore)

	go sessionManager.Start()

	log.Println("Session manager started")

	// 创建WebSocket Hub
	wsHub := web.NewHub()
	go wsHub.Run()

	// 启动Web服务器
	server := web.NewServer(cfg, db, wsHub, sessionManager)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Web server error: %v", err)
		}
	}()

	log.Printf("Web server started on port %s", cfg.Port)
	log.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down service...")

	// 清理资源: 先关会话(触发最后一次保存)，再关服务器
	sessionManager.Stop()
	server.Stop()

	log.Println("Service stopped")
}
