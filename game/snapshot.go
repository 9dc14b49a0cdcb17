package game

import "math"

// Snapshot 某一帧的只读状态，每个 Tick 广播一次
type Snapshot struct {
	State   State            `json:"state"`
	Frame   uint64           `json:"frame"`
	Ball    BallSnapshot     `json:"ball"`
	Players []PlayerSnapshot `json:"players"`
}

type BallSnapshot struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

type PlayerSnapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	PaddleY   float64 `json:"paddle_y"`
	Score     int     `json:"score"`
	LatencyMs float64 `json:"latency_ms"`
}

// Round2 保留两位小数，快照中所有浮点字段均按此精度输出
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Snapshot 按加入顺序生成快照
func (m *Match) Snapshot() Snapshot {
	s := Snapshot{
		State: m.State,
		Frame: m.Frame,
		Ball: BallSnapshot{
			X:  Round2(m.Ball.Position.X),
			Y:  Round2(m.Ball.Position.Y),
			VX: Round2(m.Ball.Velocity.X),
			VY: Round2(m.Ball.Velocity.Y),
		},
		Players: make([]PlayerSnapshot, 0, len(m.Players)),
	}
	for _, p := range m.Players {
		s.Players = append(s.Players, PlayerSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			PaddleY:   Round2(p.Paddle.Y),
			Score:     p.Score,
			LatencyMs: Round2(p.AvgLatency()),
		})
	}
	return s
}
