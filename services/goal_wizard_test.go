package services

import (
	"errors"
	"testing"
)

func TestWizardHappyPath(t *testing.T) {
	w := NewGoalWizard()

	if w.State() != WizardStateTeam {
		t.Fatalf("Expected initial state team, got %s", w.State())
	}

	if err := w.SelectTeam(teamA); err != nil {
		t.Fatalf("SelectTeam failed: %v", err)
	}
	if w.State() != WizardStatePlayer {
		t.Fatalf("Expected player state, got %s", w.State())
	}

	if err := w.SelectPlayer(p1); err != nil {
		t.Fatalf("SelectPlayer failed: %v", err)
	}
	if w.State() != WizardStateGoalType {
		t.Fatalf("Expected goal_type state, got %s", w.State())
	}
	if w.IsOwnGoal() {
		t.Error("Expected own-goal preset false for same-team player")
	}

	if err := w.SetOwnGoal(false); err != nil {
		t.Fatalf("SetOwnGoal failed: %v", err)
	}
	if w.State() != WizardStateAssist {
		t.Fatalf("Expected assist state, got %s", w.State())
	}

	if err := w.SelectAssist(p2); err != nil {
		t.Fatalf("SelectAssist failed: %v", err)
	}
	if w.State() != WizardStateConfirm {
		t.Fatalf("Expected confirm state, got %s", w.State())
	}

	commit, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if commit.Team.ID != teamA.ID || commit.Player.ID != p1.ID {
		t.Errorf("Commit carries wrong selections: %+v", commit)
	}
	if commit.AssistPlayer == nil || commit.AssistPlayer.ID != p2.ID {
		t.Errorf("Expected assist player p2, got %+v", commit.AssistPlayer)
	}
	if w.State() != WizardStateCommitted {
		t.Errorf("Expected committed state, got %s", w.State())
	}
}

func TestWizardOwnGoalSkipsAssist(t *testing.T) {
	w := NewGoalWizard()
	w.SelectTeam(teamA)
	w.SelectPlayer(p1)

	if err := w.SetOwnGoal(true); err != nil {
		t.Fatalf("SetOwnGoal failed: %v", err)
	}
	if w.State() != WizardStateConfirm {
		t.Fatalf("Expected own goal to skip assist, got state %s", w.State())
	}
	if w.AssistPlayer() != nil {
		t.Error("Expected no assist player for own goal")
	}

	commit, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !commit.IsOwnGoal || commit.AssistPlayer != nil {
		t.Errorf("Expected own goal without assist, got %+v", commit)
	}
}

func TestWizardCrossTeamPlayerPresetsOwnGoal(t *testing.T) {
	w := NewGoalWizard()
	w.SelectTeam(teamA)

	// 进球方是 A，但选择了 B 队球员: 预设乌龙
	if err := w.SelectPlayer(p9); err != nil {
		t.Fatalf("SelectPlayer failed: %v", err)
	}
	if !w.IsOwnGoal() {
		t.Error("Expected own-goal preset true for cross-team player")
	}

	// 预设可以被 goal_type 步骤改写
	if err := w.SetOwnGoal(false); err != nil {
		t.Fatalf("SetOwnGoal failed: %v", err)
	}
	if w.State() != WizardStateAssist {
		t.Errorf("Expected assist state after overriding preset, got %s", w.State())
	}
}

func TestWizardAssistMustDifferFromScorer(t *testing.T) {
	w := NewGoalWizard()
	w.SelectTeam(teamA)
	w.SelectPlayer(p1)
	w.SetOwnGoal(false)

	if err := w.SelectAssist(p1); err == nil {
		t.Fatal("Expected error selecting scorer as assist")
	} else if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected ErrValidationFailed, got %v", err)
	}
	if w.State() != WizardStateAssist {
		t.Errorf("Expected state unchanged after invalid assist, got %s", w.State())
	}

	if err := w.DeclineAssist(); err != nil {
		t.Fatalf("DeclineAssist failed: %v", err)
	}
	if w.State() != WizardStateConfirm {
		t.Errorf("Expected confirm after declining assist, got %s", w.State())
	}
}

func TestWizardBackTransitions(t *testing.T) {
	w := NewGoalWizard()
	w.SelectTeam(teamA)
	w.SelectPlayer(p1)
	w.SetOwnGoal(false)
	w.DeclineAssist()

	// confirm → assist → goal_type → player → team
	steps := []WizardState{WizardStateAssist, WizardStateGoalType, WizardStatePlayer, WizardStateTeam}
	for _, want := range steps {
		if err := w.Back(); err != nil {
			t.Fatalf("Back failed: %v", err)
		}
		if w.State() != want {
			t.Fatalf("Expected state %s, got %s", want, w.State())
		}
	}

	if err := w.Back(); err == nil {
		t.Error("Expected error going back from initial step")
	}
}

func TestWizardBackFromConfirmSkipsAssistForOwnGoal(t *testing.T) {
	w := NewGoalWizard()
	w.SelectTeam(teamA)
	w.SelectPlayer(p1)
	w.SetOwnGoal(true)

	if err := w.Back(); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	// assist 被跳过，后退也必须跳过
	if w.State() != WizardStateGoalType {
		t.Errorf("Expected back from confirm to land on goal_type for own goal, got %s", w.State())
	}
}

func TestWizardPreselectedTeamBackCancels(t *testing.T) {
	w := NewGoalWizardForTeam(teamA)

	if w.State() != WizardStatePlayer {
		t.Fatalf("Expected quick entry to start at player, got %s", w.State())
	}

	if err := w.Back(); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if w.State() != WizardStateCancelled {
		t.Errorf("Expected back with preselected team to cancel wizard, got %s", w.State())
	}

	if _, err := w.Commit(); err != ErrWizardClosed {
		t.Errorf("Expected ErrWizardClosed after cancellation, got %v", err)
	}
}

func TestWizardEditModeStartsAtPlayer(t *testing.T) {
	goal := goalFor("team-b", "p9", 1200, false)
	goal.TeamName = "Team B"

	w := NewGoalWizardForEdit(goal)

	if w.State() != WizardStatePlayer {
		t.Fatalf("Expected edit mode to start at player, got %s", w.State())
	}
	if !w.EditMode() {
		t.Error("Expected edit mode flag")
	}
	if w.SelectedTeam() == nil || w.SelectedTeam().ID != "team-b" {
		t.Errorf("Expected team prefilled from edited event, got %+v", w.SelectedTeam())
	}

	w.SelectPlayer(p9)
	w.SetOwnGoal(false)
	w.DeclineAssist()

	commit, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if commit.EditEventID != goal.ID {
		t.Errorf("Expected commit to carry edited event id %s, got %s", goal.ID, commit.EditEventID)
	}
}

func TestWizardCommitRequiresSelections(t *testing.T) {
	w := NewGoalWizard()

	// 未选队伍和球员时提交是逻辑错误，状态保持不变
	if _, err := w.Commit(); err == nil {
		t.Fatal("Expected validation error committing without selections")
	} else if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected ErrValidationFailed, got %v", err)
	}
	if w.State() != WizardStateTeam {
		t.Errorf("Expected state unchanged after failed commit, got %s", w.State())
	}

	w.SelectTeam(teamA)
	if _, err := w.Commit(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected ErrValidationFailed without player, got %v", err)
	}
	if w.State() != WizardStatePlayer {
		t.Errorf("Expected state unchanged, got %s", w.State())
	}
}

func TestWizardSelectionOrderEnforced(t *testing.T) {
	w := NewGoalWizard()

	if err := w.SelectPlayer(p1); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected error selecting player before team, got %v", err)
	}
	if err := w.SetOwnGoal(true); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected error setting goal type before player, got %v", err)
	}
	if err := w.SelectAssist(p2); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Expected error selecting assist before assist step, got %v", err)
	}
}
