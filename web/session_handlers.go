package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"refmatch-service/services"
)

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError 把引擎错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var dup *services.DuplicateError
	var validation *services.ValidationError

	switch {
	case errors.As(err, &dup):
		status = http.StatusConflict
		writeJSON(w, status, map[string]interface{}{
			"error":       err.Error(),
			"conflict_id": dup.ConflictID,
		})
		return
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrSessionExists):
		status = http.StatusConflict
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrEventNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConfirmThrottled):
		status = http.StatusTooManyRequests
	case errors.Is(err, services.ErrSessionOpen), errors.Is(err, services.ErrNoOpenSession), errors.Is(err, services.ErrWizardClosed):
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// getSession 从路径参数定位会话
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) (*services.MatchSession, bool) {
	vars := mux.Vars(r)
	session, err := s.sessions.GetSession(vars["fixture_id"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return session, true
}

// handleCreateSession 创建裁判会话
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FixtureID string           `json:"fixture_id"`
		HomeTeam  services.TeamRef `json:"home_team"`
		AwayTeam  services.TeamRef `json:"away_team"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.sessions.CreateSession(req.FixtureID, req.HomeTeam, req.AwayTeam)
	if err != nil {
		writeError(w, err)
		return
	}

	// 账本变更推送给订阅该比赛的 UI
	session.SetOnChange(func(snapshot *services.SessionSnapshot) {
		s.wsHub.Broadcast(&WSMessage{
			Type:      "ledger_update",
			FixtureID: snapshot.FixtureID,
			Data:      snapshot,
		})
	})

	writeJSON(w, http.StatusCreated, session.Snapshot())
}

// handleGetSession 读取会话快照
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleCloseSession 结束会话
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.sessions.CloseSession(vars["fixture_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"closed": true})
}

// handleResetSession 比赛重置，清空账本
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}
	session.Reset()
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleAddGoal 直接添加进球
func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Team         services.TeamRef    `json:"team"`
		Player       services.PlayerRef  `json:"player"`
		MatchTime    int                 `json:"match_time"`
		IsOwnGoal    bool                `json:"is_own_goal"`
		AssistPlayer *services.PlayerRef `json:"assist_player,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	goal, assist, err := session.AddGoal(services.GoalInput{
		Team:         req.Team,
		Player:       req.Player,
		MatchTime:    req.MatchTime,
		IsOwnGoal:    req.IsOwnGoal,
		AssistPlayer: req.AssistPlayer,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"goal":   goal,
		"assist": assist,
	})
}

// handleAddCard 添加牌
func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Team      services.TeamRef   `json:"team"`
		Player    services.PlayerRef `json:"player"`
		MatchTime int                `json:"match_time"`
		CardType  services.CardType  `json:"card_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cards, err := session.AddCard(services.CardInput{
		Team:      req.Team,
		Player:    req.Player,
		MatchTime: req.MatchTime,
		CardType:  req.CardType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"cards": cards})
}

// handleRemoveEvent 删除事件
func (s *Server) handleRemoveEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if err := session.RemoveEvent(vars["event_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": vars["event_id"]})
}

// handleStartPlayerTime 球员开始计时
func (s *Server) handleStartPlayerTime(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		PlayerID  string `json:"player_id"`
		TeamID    string `json:"team_id"`
		MatchTime int    `json:"match_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeSession, err := session.StartPlayerTime(req.PlayerID, req.TeamID, req.MatchTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, timeSession)
}

// handleEndPlayerTime 球员结束计时
func (s *Server) handleEndPlayerTime(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		PlayerID  string `json:"player_id"`
		MatchTime int    `json:"match_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeSession, err := session.EndPlayerTime(req.PlayerID, req.MatchTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeSession)
}

// handleBatchSave 手动触发批量保存
func (s *Server) handleBatchSave(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	report, err := session.BatchSave(r.Context())
	if err != nil {
		// 全部失败时报告仍然返回，UI 据此提示重试
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStartWizard 开始进球向导。可选 team 预选快捷入口，可选 edit_event_id 编辑模式。
func (s *Server) handleStartWizard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Team        *services.TeamRef `json:"team,omitempty"`
		EditEventID string            `json:"edit_event_id,omitempty"`
	}
	// 请求体可以为空 (标准向导入口)，但给了就必须是合法 JSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var wizard *services.GoalWizard
	var err error
	switch {
	case req.EditEventID != "":
		wizard, err = session.StartWizardForEdit(req.EditEventID)
	case req.Team != nil:
		wizard = session.StartWizardForTeam(*req.Team)
	default:
		wizard = session.StartWizard()
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wizardView(wizard))
}

// handleWizardSelect 向导选择命令，step 决定选择的内容
func (s *Server) handleWizardSelect(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	wizard := session.Wizard()
	if wizard == nil {
		writeError(w, services.ErrWizardClosed)
		return
	}

	var req struct {
		Step      string              `json:"step"` // team / player / goal_type / assist / decline_assist
		Team      *services.TeamRef   `json:"team,omitempty"`
		Player    *services.PlayerRef `json:"player,omitempty"`
		IsOwnGoal bool                `json:"is_own_goal,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	switch req.Step {
	case "team":
		if req.Team == nil {
			err = &services.ValidationError{Field: "team", Message: "team is required"}
		} else {
			err = wizard.SelectTeam(*req.Team)
		}
	case "player":
		if req.Player == nil {
			err = &services.ValidationError{Field: "player", Message: "player is required"}
		} else {
			err = wizard.SelectPlayer(*req.Player)
		}
	case "goal_type":
		err = wizard.SetOwnGoal(req.IsOwnGoal)
	case "assist":
		if req.Player == nil {
			err = &services.ValidationError{Field: "player", Message: "player is required"}
		} else {
			err = wizard.SelectAssist(*req.Player)
		}
	case "decline_assist":
		err = wizard.DeclineAssist()
	default:
		err = &services.ValidationError{Field: "step", Message: "unknown wizard step"}
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardView(wizard))
}

// handleWizardBack 向导回退
func (s *Server) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	wizard := session.Wizard()
	if wizard == nil {
		writeError(w, services.ErrWizardClosed)
		return
	}

	if err := wizard.Back(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardView(wizard))
}

// handleWizardCommit 提交向导，进球入账
func (s *Server) handleWizardCommit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	var req struct {
		MatchTime int `json:"match_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	goal, assist, err := session.CommitWizard(req.MatchTime)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"goal":   goal,
		"assist": assist,
	})
}

// handleCancelWizard 取消进行中的向导
func (s *Server) handleCancelWizard(w http.ResponseWriter, r *http.Request) {
	session, ok := s.getSession(w, r)
	if !ok {
		return
	}

	if wizard := session.Wizard(); wizard != nil {
		wizard.Cancel()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": true})
}

// wizardView 向导状态的对外视图
func wizardView(wizard *services.GoalWizard) map[string]interface{} {
	view := map[string]interface{}{
		"state":       wizard.State(),
		"is_own_goal": wizard.IsOwnGoal(),
		"edit_mode":   wizard.EditMode(),
	}
	if t := wizard.SelectedTeam(); t != nil {
		view["team"] = t
	}
	if p := wizard.SelectedPlayer(); p != nil {
		view["player"] = p
	}
	if a := wizard.AssistPlayer(); a != nil {
		view["assist_player"] = a
	}
	return view
}
