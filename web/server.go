package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"refmatch-service/config"
	"refmatch-service/services"
)

type Server struct {
	config     *config.Config
	db         *sql.DB
	wsHub      *Hub
	sessions   *services.MatchSessionManager
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg *config.Config, db *sql.DB, hub *Hub, sessions *services.MatchSessionManager) *Server {
	return &Server{
		config:   cfg,
		db:       db,
		wsHub:    hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	// 会话生命周期
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{fixture_id}", s.handleCloseSession).Methods("DELETE")
	api.HandleFunc("/sessions/{fixture_id}/reset", s.handleResetSession).Methods("POST")

	// 账本命令
	api.HandleFunc("/sessions/{fixture_id}/goals", s.handleAddGoal).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/cards", s.handleAddCard).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/events/{event_id}", s.handleRemoveEvent).Methods("DELETE")
	api.HandleFunc("/sessions/{fixture_id}/player-times/start", s.handleStartPlayerTime).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/player-times/end", s.handleEndPlayerTime).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/save", s.handleBatchSave).Methods("POST")

	// 进球向导命令
	api.HandleFunc("/sessions/{fixture_id}/wizard", s.handleStartWizard).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/wizard/select", s.handleWizardSelect).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/wizard/back", s.handleWizardBack).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/wizard/commit", s.handleWizardCommit).Methods("POST")
	api.HandleFunc("/sessions/{fixture_id}/wizard", s.handleCancelWizard).Methods("DELETE")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleGetStats 获取统计信息
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.sessions.Stats()

	if s.db != nil {
		var totalEvents, totalFailures int
		s.db.QueryRow("SELECT COUNT(*) FROM match_events").Scan(&totalEvents)
		s.db.QueryRow("SELECT COUNT(*) FROM sync_failures").Scan(&totalFailures)
		stats["remote_events"] = totalEvents
		stats["sync_failures"] = totalFailures
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleWebSocket WebSocket连接处理
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:        s.wsHub,
		conn:       conn,
		send:       make(chan []byte, 256),
		fixtureIDs: make(map[string]bool),
	}

	client.hub.register <- client

	// 发送欢迎消息
	welcomeMsg := &WSMessage{
		Type: "connected",
		Data: map[string]interface{}{
			"message": "Connected to refmatch WebSocket",
			"time":    time.Now().Unix(),
		},
	}
	welcomeData, _ := json.Marshal(welcomeMsg)
	client.send <- welcomeData

	go client.writePump()
	go client.readPump()
}
