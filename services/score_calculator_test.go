package services

import (
	"testing"
)

func goalFor(team, player string, matchTime int, ownGoal bool) *GoalEvent {
	return &GoalEvent{
		MatchEvent: MatchEvent{
			ID:        newLocalID(),
			FixtureID: "fx-1",
			MatchTime: matchTime,
			TeamID:    team,
			PlayerID:  player,
		},
		Kind:      GoalKindGoal,
		IsOwnGoal: ownGoal,
	}
}

func assistFor(team, player string, matchTime int) *GoalEvent {
	g := goalFor(team, player, matchTime, false)
	g.Kind = GoalKindAssist
	return g
}

func TestComputeScoreBasic(t *testing.T) {
	goals := []*GoalEvent{
		goalFor("team-a", "p1", 300, false),
		goalFor("team-b", "p9", 700, false),
		goalFor("team-a", "p2", 1500, false),
	}

	score, warnings := ComputeScore("team-a", "team-b", "fx-1", goals)

	if score.Home != 2 || score.Away != 1 {
		t.Errorf("Expected score 2:1, got %d:%d", score.Home, score.Away)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %d", len(warnings))
	}
}

func TestComputeScoreOwnGoalCreditsOpponent(t *testing.T) {
	// Team A 球员的乌龙球必须记给 Team B
	goals := []*GoalEvent{
		goalFor("team-a", "p2", 120, true),
	}

	score, _ := ComputeScore("team-a", "team-b", "fx-1", goals)

	if score.Home != 0 || score.Away != 1 {
		t.Errorf("Expected score 0:1 after own goal, got %d:%d", score.Home, score.Away)
	}

	// 反方向
	goals = []*GoalEvent{
		goalFor("team-b", "p8", 200, true),
	}
	score, _ = ComputeScore("team-a", "team-b", "fx-1", goals)
	if score.Home != 1 || score.Away != 0 {
		t.Errorf("Expected score 1:0 after away own goal, got %d:%d", score.Home, score.Away)
	}
}

func TestComputeScoreIgnoresAssists(t *testing.T) {
	goals := []*GoalEvent{
		goalFor("team-a", "p1", 300, false),
		assistFor("team-a", "p2", 300),
	}

	score, _ := ComputeScore("team-a", "team-b", "fx-1", goals)

	if score.Home != 1 || score.Away != 0 {
		t.Errorf("Expected assists not to score, got %d:%d", score.Home, score.Away)
	}
}

func TestComputeScoreUnknownTeamWarns(t *testing.T) {
	goals := []*GoalEvent{
		goalFor("team-a", "p1", 300, false),
		goalFor("team-x", "p5", 400, false),
	}

	score, warnings := ComputeScore("team-a", "team-b", "fx-1", goals)

	if score.Home != 1 || score.Away != 0 {
		t.Errorf("Expected unknown team goal to count toward neither side, got %d:%d", score.Home, score.Away)
	}
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Kind != WarningUnknownTeam {
		t.Errorf("Expected warning kind %q, got %q", WarningUnknownTeam, warnings[0].Kind)
	}
}

func TestComputeScoreTotalOnMalformedInput(t *testing.T) {
	// 任何输入都不允许 panic
	goals := []*GoalEvent{
		nil,
		{},
		goalFor("", "", -1, true),
	}

	score, _ := ComputeScore("team-a", "team-b", "fx-1", goals)

	if score.Home != 0 || score.Away != 0 {
		t.Errorf("Expected 0:0 on malformed input, got %d:%d", score.Home, score.Away)
	}
}

func TestComputeScoreDeterminism(t *testing.T) {
	goals := []*GoalEvent{
		goalFor("team-a", "p1", 100, false),
		goalFor("team-b", "p9", 200, false),
		goalFor("team-a", "p3", 300, true),
		assistFor("team-b", "p7", 200),
		goalFor("team-a", "p1", 2500, false),
	}

	// 手工折叠出的期望值
	wantHome, wantAway := 0, 0
	for _, g := range goals {
		if g.Kind != GoalKindGoal {
			continue
		}
		team := g.TeamID
		if g.IsOwnGoal {
			if team == "team-a" {
				team = "team-b"
			} else {
				team = "team-a"
			}
		}
		if team == "team-a" {
			wantHome++
		} else {
			wantAway++
		}
	}

	for i := 0; i < 10; i++ {
		score, _ := ComputeScore("team-a", "team-b", "fx-1", goals)
		if score.Home != wantHome || score.Away != wantAway {
			t.Fatalf("Run %d: expected %d:%d, got %d:%d", i, wantHome, wantAway, score.Home, score.Away)
		}
	}
}
