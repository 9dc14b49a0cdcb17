package game

import (
	"errors"
	"math"
	"math/rand"
)

// State 比赛生命周期
type State int

const (
	StateWaiting State = iota
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText 以小写字符串形式出现在 JSON 中
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "waiting":
		*s = StateWaiting
	case "playing":
		*s = StatePlaying
	case "finished":
		*s = StateFinished
	default:
		return errors.New("game: unknown state " + string(b))
	}
	return nil
}

// Event Advance 的返回结果
type Event int

const (
	EventNone Event = iota
	EventScored
	EventMatchOver
)

// MaxPlayers 每局固定两名玩家
const MaxPlayers = 2

var (
	ErrMatchFull     = errors.New("game: match already has two players")
	ErrMatchFinished = errors.New("game: match is finished")
)

// Match 单局比赛的纯状态机，不做任何 I/O，也不加锁（由 Session 负责并发）
type Match struct {
	Rules   Rules
	State   State
	Players []*Player // 加入顺序：0 号在左，1 号在右
	Ball    Ball
	Frame   uint64

	rng *rand.Rand
}

// NewMatch 创建等待中的比赛；rng 为 nil 时使用随机种子
func NewMatch(rules Rules, rng *rand.Rand) *Match {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Match{
		Rules: rules,
		State: StateWaiting,
		Ball: Ball{
			Position: Vector2{X: rules.CanvasWidth / 2, Y: rules.CanvasHeight / 2},
			Radius:   rules.BallRadius,
			MaxSpeed: rules.BallMaxSpeed,
		},
		rng: rng,
	}
}

// AddPlayer 加入玩家；满两人时自动开赛（唯一的自动开始条件）
func (m *Match) AddPlayer(id, name string) error {
	if m.State == StateFinished {
		return ErrMatchFinished
	}
	if len(m.Players) >= MaxPlayers {
		return ErrMatchFull
	}
	m.Players = append(m.Players, &Player{
		ID:   id,
		Name: name,
		Paddle: Paddle{
			Y:      m.Rules.CanvasHeight / 2,
			Width:  m.Rules.PaddleWidth,
			Height: m.Rules.PaddleHeight,
			Speed:  m.Rules.PaddleSpeed,
		},
	})
	if len(m.Players) == MaxPlayers {
		m.Start()
	}
	return nil
}

// RemovePlayer 移除玩家；比赛中人数不足两人则直接结束（不判定胜者）
func (m *Match) RemovePlayer(id string) bool {
	for i, p := range m.Players {
		if p.ID != id {
			continue
		}
		m.Players = append(m.Players[:i], m.Players[i+1:]...)
		if len(m.Players) < MaxPlayers && m.State == StatePlaying {
			m.State = StateFinished
		}
		return true
	}
	return false
}

// Player 按 ID 查找玩家
func (m *Match) Player(id string) *Player {
	for _, p := range m.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Start 开赛：球拍居中、发球、帧计数归零
func (m *Match) Start() {
	m.State = StatePlaying
	m.Frame = 0
	for _, p := range m.Players {
		p.Paddle.Y = m.Rules.CanvasHeight / 2
		p.Paddle.Velocity = 0
	}
	m.ResetBall(1)
}

// ResetBall 球回到中心，以 ±45° 内的随机角度发出；direction 为 1 向右，-1 向左
func (m *Match) ResetBall(direction float64) {
	m.Ball.Position = Vector2{X: m.Rules.CanvasWidth / 2, Y: m.Rules.CanvasHeight / 2}
	angle := (m.rng.Float64()*2 - 1) * math.Pi / 4
	speed := m.Rules.LaunchSpeed
	m.Ball.Velocity = Vector2{
		X: speed * direction * math.Cos(angle),
		Y: speed * math.Sin(angle),
	}
}

// SetInput 设置球拍速度，direction 只取符号：-1 上、0 停、1 下
func (m *Match) SetInput(id string, direction float64) bool {
	p := m.Player(id)
	if p == nil {
		return false
	}
	var dir float64
	switch {
	case direction > 0:
		dir = 1
	case direction < 0:
		dir = -1
	}
	p.Paddle.Velocity = dir * p.Paddle.Speed
	return true
}

// Advance 推进一个时间步；非 Playing 状态下为空操作
func (m *Match) Advance(dt float64) Event {
	if m.State != StatePlaying {
		return EventNone
	}
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	dt = math.Min(dt, m.Rules.maxStep())

	for _, p := range m.Players {
		p.Paddle.Y += p.Paddle.Velocity * dt
		p.Paddle.clamp(m.Rules.CanvasHeight)
	}

	b := &m.Ball
	b.Position = b.Position.Add(b.Velocity.Scale(dt))

	// 上下墙反弹，并拉回边界避免陷入墙内
	if b.Position.Y-b.Radius <= 0 {
		b.Position.Y = b.Radius
		b.Velocity.Y = math.Abs(b.Velocity.Y)
	} else if b.Position.Y+b.Radius >= m.Rules.CanvasHeight {
		b.Position.Y = m.Rules.CanvasHeight - b.Radius
		b.Velocity.Y = -math.Abs(b.Velocity.Y)
	}

	if len(m.Players) == MaxPlayers {
		m.collideLeft(&m.Players[0].Paddle)
		m.collideRight(&m.Players[1].Paddle)
	}

	if speed := b.Velocity.Len(); speed > b.MaxSpeed {
		b.Velocity = b.Velocity.Scale(b.MaxSpeed / speed)
	}

	m.Frame++

	switch {
	case b.Position.X < 0 && len(m.Players) == MaxPlayers:
		return m.score(1, 1)
	case b.Position.X > m.Rules.CanvasWidth && len(m.Players) == MaxPlayers:
		return m.score(0, -1)
	}
	return EventNone
}

// collideLeft 0 号球拍：球的水平范围与球拍竖条重叠、纵向重叠且向左运动时反弹
func (m *Match) collideLeft(p *Paddle) {
	b := &m.Ball
	back := m.Rules.PaddleOffset
	face := back + p.Width
	if b.Position.X-b.Radius > face || b.Position.X+b.Radius < back {
		return
	}
	if math.Abs(b.Position.Y-p.Y) > p.Height/2+b.Radius || b.Velocity.X >= 0 {
		return
	}
	b.Position.X = face + b.Radius
	b.Velocity.X = math.Abs(b.Velocity.X) * m.Rules.HitSpeedup
	m.spin(p)
}

// collideRight 1 号球拍，与 collideLeft 镜像
func (m *Match) collideRight(p *Paddle) {
	b := &m.Ball
	back := m.Rules.CanvasWidth - m.Rules.PaddleOffset
	face := back - p.Width
	if b.Position.X+b.Radius < face || b.Position.X-b.Radius > back {
		return
	}
	if math.Abs(b.Position.Y-p.Y) > p.Height/2+b.Radius || b.Velocity.X <= 0 {
		return
	}
	b.Position.X = face - b.Radius
	b.Velocity.X = -math.Abs(b.Velocity.X) * m.Rules.HitSpeedup
	m.spin(p)
}

// spin 偏移量取 球拍中心 - 球心：击中中心上方时球继续向上偏
func (m *Match) spin(p *Paddle) {
	relative := (p.Y - m.Ball.Position.Y) / (p.Height / 2)
	m.Ball.Velocity.Y += -relative * m.Rules.Spin
}

func (m *Match) score(scorer int, direction float64) Event {
	m.Players[scorer].Score++
	m.ResetBall(direction)
	if m.Players[scorer].Score >= m.Rules.WinningScore {
		m.State = StateFinished
		return EventMatchOver
	}
	return EventScored
}

// Leader 当前得分最高的玩家（同分时取先加入者）
func (m *Match) Leader() *Player {
	var best *Player
	for _, p := range m.Players {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

// MatchResult 交给持久化协作方的比赛结果
type MatchResult struct {
	PlayerName    string
	OpponentName  string
	PlayerScore   int
	OpponentScore int
	AvgLatencyMs  float64
}

// Result 仅在比赛结束且两名玩家仍在时可用
func (m *Match) Result() (MatchResult, bool) {
	if m.State != StateFinished || len(m.Players) != MaxPlayers {
		return MatchResult{}, false
	}
	p0, p1 := m.Players[0], m.Players[1]
	return MatchResult{
		PlayerName:    p0.Name,
		OpponentName:  p1.Name,
		PlayerScore:   p0.Score,
		OpponentScore: p1.Score,
		AvgLatencyMs:  (p0.AvgLatency() + p1.AvgLatency()) / 2,
	}, true
}
