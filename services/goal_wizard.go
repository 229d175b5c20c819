package services

// WizardState 进球向导所处步骤
type WizardState string

const (
	WizardStateTeam      WizardState = "team"
	WizardStatePlayer    WizardState = "player"
	WizardStateGoalType  WizardState = "goal_type"
	WizardStateAssist    WizardState = "assist"
	WizardStateConfirm   WizardState = "confirm"
	WizardStateCancelled WizardState = "cancelled"
	WizardStateCommitted WizardState = "committed"
)

// GoalWizard 进球录入向导状态机。
// 流程: team → player → goal_type → assist → confirm，乌龙球跳过 assist。
// 状态机只负责收集一条完整进球事件所需的数据，入账由账本完成。
type GoalWizard struct {
	state WizardState

	selectedTeam   *TeamRef
	selectedPlayer *PlayerRef
	isOwnGoal      bool
	assistPlayer   *PlayerRef

	// teamPreselected 为 true 时 (快捷进球入口或编辑模式)，
	// 从 player 步骤后退直接取消向导而不是回到 team 步骤
	teamPreselected bool
	editMode        bool
	editEventID     string
}

// NewGoalWizard 从选队步骤开始的标准向导
func NewGoalWizard() *GoalWizard {
	return &GoalWizard{state: WizardStateTeam}
}

// NewGoalWizardForTeam 队伍已由调用方预选的快捷入口，直接进入选球员步骤
func NewGoalWizardForTeam(team TeamRef) *GoalWizard {
	t := team
	return &GoalWizard{
		state:           WizardStatePlayer,
		selectedTeam:    &t,
		teamPreselected: true,
	}
}

// NewGoalWizardForEdit 编辑模式，从被编辑事件预填队伍后进入选球员步骤
func NewGoalWizardForEdit(event *GoalEvent) *GoalWizard {
	return &GoalWizard{
		state:           WizardStatePlayer,
		selectedTeam:    &TeamRef{ID: event.TeamID, Name: event.TeamName},
		teamPreselected: true,
		editMode:        true,
		editEventID:     event.ID,
	}
}

// State 当前步骤
func (w *GoalWizard) State() WizardState {
	return w.state
}

// EditMode 是否为编辑模式
func (w *GoalWizard) EditMode() bool {
	return w.editMode
}

// EditEventID 编辑模式下被编辑事件的 ID
func (w *GoalWizard) EditEventID() string {
	return w.editEventID
}

// SelectedTeam 已选队伍，未选返回 nil
func (w *GoalWizard) SelectedTeam() *TeamRef {
	return w.selectedTeam
}

// SelectedPlayer 已选进球球员，未选返回 nil
func (w *GoalWizard) SelectedPlayer() *PlayerRef {
	return w.selectedPlayer
}

// IsOwnGoal 当前乌龙球标记
func (w *GoalWizard) IsOwnGoal() bool {
	return w.isOwnGoal
}

// AssistPlayer 已选助攻球员，未选返回 nil
func (w *GoalWizard) AssistPlayer() *PlayerRef {
	return w.assistPlayer
}

// SelectTeam 选择进球队伍: team → player
func (w *GoalWizard) SelectTeam(team TeamRef) error {
	if w.state != WizardStateTeam {
		return &ValidationError{Field: "state", Message: "team can only be selected in the team step"}
	}
	if team.ID == "" {
		return &ValidationError{Field: "teamId", Message: "team id is required"}
	}

	t := team
	w.selectedTeam = &t
	w.state = WizardStatePlayer
	return nil
}

// SelectPlayer 选择进球球员: player → goal_type。
// 球员不属于进球队伍时预设乌龙球标记，后续步骤仍可改写。
func (w *GoalWizard) SelectPlayer(player PlayerRef) error {
	if w.state != WizardStatePlayer {
		return &ValidationError{Field: "state", Message: "player can only be selected in the player step"}
	}
	if player.ID == "" {
		return &ValidationError{Field: "playerId", Message: "player id is required"}
	}

	p := player
	w.selectedPlayer = &p
	// 预设值而非强制值
	w.isOwnGoal = player.TeamID != "" && w.selectedTeam != nil && player.TeamID != w.selectedTeam.ID
	w.state = WizardStateGoalType
	return nil
}

// SetOwnGoal 确认是否乌龙球: goal_type → confirm (乌龙) / assist (普通)。
// 乌龙球不可能有助攻，直接跳过 assist 步骤。
func (w *GoalWizard) SetOwnGoal(ownGoal bool) error {
	if w.state != WizardStateGoalType {
		return &ValidationError{Field: "state", Message: "goal type can only be set in the goal_type step"}
	}

	w.isOwnGoal = ownGoal
	if ownGoal {
		w.assistPlayer = nil
		w.state = WizardStateConfirm
	} else {
		w.state = WizardStateAssist
	}
	return nil
}

// SelectAssist 选择助攻球员: assist → confirm，助攻球员必须不同于进球球员
func (w *GoalWizard) SelectAssist(player PlayerRef) error {
	if w.state != WizardStateAssist {
		return &ValidationError{Field: "state", Message: "assist can only be selected in the assist step"}
	}
	if w.selectedPlayer != nil && player.ID == w.selectedPlayer.ID {
		return &ValidationError{Field: "assistPlayer", Message: "assist player must differ from the scorer"}
	}

	p := player
	w.assistPlayer = &p
	w.state = WizardStateConfirm
	return nil
}

// DeclineAssist 无助攻: assist → confirm
func (w *GoalWizard) DeclineAssist() error {
	if w.state != WizardStateAssist {
		return &ValidationError{Field: "state", Message: "assist can only be declined in the assist step"}
	}

	w.assistPlayer = nil
	w.state = WizardStateConfirm
	return nil
}

// Back 回退到上一步。队伍为预选时从 player 步骤后退直接取消向导。
func (w *GoalWizard) Back() error {
	switch w.state {
	case WizardStatePlayer:
		if w.teamPreselected {
			w.state = WizardStateCancelled
			return nil
		}
		w.selectedPlayer = nil
		w.state = WizardStateTeam
	case WizardStateGoalType:
		w.state = WizardStatePlayer
	case WizardStateAssist:
		w.assistPlayer = nil
		w.state = WizardStateGoalType
	case WizardStateConfirm:
		if w.isOwnGoal {
			// assist 步骤被跳过，后退也跳过它
			w.state = WizardStateGoalType
		} else {
			w.state = WizardStateAssist
		}
	case WizardStateCancelled, WizardStateCommitted:
		return ErrWizardClosed
	default:
		return &ValidationError{Field: "state", Message: "cannot go back from the initial step"}
	}
	return nil
}

// Cancel 主动取消向导
func (w *GoalWizard) Cancel() {
	w.state = WizardStateCancelled
}

// GoalCommit 向导产出的完整进球数据
type GoalCommit struct {
	Team         TeamRef
	Player       PlayerRef
	IsOwnGoal    bool
	AssistPlayer *PlayerRef
	EditEventID  string
}

// Commit 提交向导: confirm → committed。
// 缺少队伍或球员属于调用方逻辑错误，返回 ValidationError 且状态保持不变。
func (w *GoalWizard) Commit() (*GoalCommit, error) {
	if w.state == WizardStateCancelled || w.state == WizardStateCommitted {
		return nil, ErrWizardClosed
	}
	if w.selectedTeam == nil {
		return nil, &ValidationError{Field: "team", Message: "commit requires a selected team"}
	}
	if w.selectedPlayer == nil {
		return nil, &ValidationError{Field: "player", Message: "commit requires a selected player"}
	}
	if w.state != WizardStateConfirm {
		return nil, &ValidationError{Field: "state", Message: "commit is only allowed in the confirm step"}
	}

	w.state = WizardStateCommitted
	return &GoalCommit{
		Team:         *w.selectedTeam,
		Player:       *w.selectedPlayer,
		IsOwnGoal:    w.isOwnGoal,
		AssistPlayer: w.assistPlayer,
		EditEventID:  w.editEventID,
	}, nil
}
