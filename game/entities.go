package game

import "math"

// Vector2 位置与速度的二维向量（值类型）
type Vector2 struct {
	X float64
	Y float64
}

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vector2) Scale(s float64) Vector2 { return Vector2{X: v.X * s, Y: v.Y * s} }

func (v Vector2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Paddle 玩家球拍，Y 为中心点纵坐标
type Paddle struct {
	Y        float64
	Velocity float64
	Width    float64
	Height   float64
	Speed    float64
}

// clamp 将球拍限制在画布内：[Height/2, canvasHeight-Height/2]
func (p *Paddle) clamp(canvasHeight float64) {
	half := p.Height / 2
	if p.Y < half {
		p.Y = half
	}
	if p.Y > canvasHeight-half {
		p.Y = canvasHeight - half
	}
}

// Ball 每局唯一的球
type Ball struct {
	Position Vector2
	Velocity Vector2
	Radius   float64
	MaxSpeed float64
}

// Player 房间内的玩家实体（服务端权威状态）
type Player struct {
	ID      string
	Name    string
	Paddle  Paddle
	Score   int
	Latency LatencyWindow
}

// AvgLatency 最近样本的平均延迟（毫秒），无样本时为 0
func (p *Player) AvgLatency() float64 {
	return p.Latency.Mean()
}
