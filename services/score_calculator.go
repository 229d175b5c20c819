package services

import "fmt"

// ComputeScore 从进球事件推导比分。纯函数，任何输入都不会 panic。
//
// 规则:
//   - 只有 kind=goal 的事件计分，助攻事件不影响比分
//   - 普通进球记给进球球员所属队伍
//   - 乌龙球记给对方队伍
//   - 队伍 ID 无法识别的事件不计入任何一方，以 ConsistencyWarning 返回给调用方
func ComputeScore(homeTeamID, awayTeamID, fixtureID string, goals []*GoalEvent) (Score, []ConsistencyWarning) {
	var score Score
	var warnings []ConsistencyWarning

	for _, g := range goals {
		if g == nil || g.Kind != GoalKindGoal {
			continue
		}

		creditTeam := g.TeamID
		if g.IsOwnGoal {
			// 乌龙球记给对方
			switch g.TeamID {
			case homeTeamID:
				creditTeam = awayTeamID
			case awayTeamID:
				creditTeam = homeTeamID
			}
		}

		switch creditTeam {
		case homeTeamID:
			score.Home++
		case awayTeamID:
			score.Away++
		default:
			// 未知队伍不计分，但必须留下痕迹
			warnings = append(warnings, ConsistencyWarning{
				FixtureID: fixtureID,
				Kind:      WarningUnknownTeam,
				Detail:    fmt.Sprintf("goal %s references unknown team %q, counted toward neither side", g.ID, g.TeamID),
			})
		}
	}

	return score, warnings
}
