// Package store 是比赛结果的持久化协作方：记录每局结果并汇总排行榜。
//
// 每局比赛以两种视角各写入一条记录（玩家/对手互换），排行榜按玩家聚合：
// 胜场数、总场数、总得分、平均延迟与胜率，先按胜场、再按总得分降序。
package store

import (
	"context"
	"math"
	"sort"
	"time"
)

// DefaultLeaderboardLimit 未指定条数时返回的排行榜长度
const DefaultLeaderboardLimit = 10

// MatchRecord 单个玩家视角的比赛记录
type MatchRecord struct {
	PlayerName    string    `json:"player_name"`
	OpponentName  string    `json:"opponent_name"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	PlayedAt      time.Time `json:"match_date"`
}

// Won 得分高于对手即为胜
func (r MatchRecord) Won() bool { return r.PlayerScore > r.OpponentScore }

// Standing 排行榜中的一行
type Standing struct {
	PlayerName   string  `json:"player_name"`
	TotalWins    int     `json:"total_wins"`
	TotalMatches int     `json:"total_matches"`
	TotalScore   int     `json:"total_score"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	WinRate      float64 `json:"win_rate"`
}

// Store 持久化接口
type Store interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	Leaderboard(ctx context.Context, limit int) ([]Standing, error)
	Close()
}

// aggregate 将记录按玩家聚合为排行榜；内存实现与测试共用
func aggregate(records []MatchRecord, limit int) []Standing {
	type acc struct {
		Standing
		latencySum float64
	}
	byName := make(map[string]*acc)
	for _, r := range records {
		a, ok := byName[r.PlayerName]
		if !ok {
			a = &acc{Standing: Standing{PlayerName: r.PlayerName}}
			byName[r.PlayerName] = a
		}
		a.TotalMatches++
		a.TotalScore += r.PlayerScore
		a.latencySum += r.AvgLatencyMs
		if r.Won() {
			a.TotalWins++
		}
	}

	out := make([]Standing, 0, len(byName))
	for _, a := range byName {
		s := a.Standing
		s.AvgLatencyMs = round(a.latencySum/float64(s.TotalMatches), 2)
		s.WinRate = round(float64(s.TotalWins)/float64(s.TotalMatches)*100, 1)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalWins != out[j].TotalWins {
			return out[i].TotalWins > out[j].TotalWins
		}
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
