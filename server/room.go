package server

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"netpong/game"
)

// Session 房间：持有一局比赛的权威状态
//
// Tick 协程（推进 + 快照）与两名玩家的入站处理（输入、延迟样本、成员变化）
// 并发访问同一房间，所有字段由 mu 保护；推进与快照在同一次加锁内完成。
type Session struct {
	Code string

	mu         sync.Mutex
	match      *game.Match
	lastUpdate time.Time
	now        func() time.Time
}

// NewSession 创建等待中的房间
func NewSession(code string, rules game.Rules, rng *rand.Rand) *Session {
	s := &Session{
		Code:  code,
		match: game.NewMatch(rules, rng),
		now:   time.Now,
	}
	s.lastUpdate = s.now()
	return s
}

// Join 加入玩家；凑满两人时开赛并重置计时起点
func (s *Session) Join(playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.match.AddPlayer(playerID, name); err != nil {
		switch {
		case errors.Is(err, game.ErrMatchFull):
			return ErrRoomFull
		case errors.Is(err, game.ErrMatchFinished):
			return ErrMatchFinished
		}
		return err
	}
	if s.match.State == game.StatePlaying {
		s.lastUpdate = s.now()
	}
	return nil
}

// Leave 移除玩家；比赛中途离开视为比赛结束
func (s *Session) Leave(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.RemovePlayer(playerID)
}

// ApplyInput 更新球拍方向，后写覆盖先写，在下一次 Tick 生效
func (s *Session) ApplyInput(playerID string, direction float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.SetInput(playerID, direction)
}

// RecordLatency 记录一个延迟样本，非法值直接忽略
func (s *Session) RecordLatency(playerID string, ms float64) bool {
	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.match.Player(playerID)
	if p == nil {
		return false
	}
	p.Latency.Push(ms)
	return true
}

// Step 按墙钟计算 dt 推进一帧，并在同一次加锁内生成快照
func (s *Session) Step(now time.Time) (game.Event, game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	ev := s.match.Advance(dt)
	return ev, s.match.Snapshot()
}

func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.Snapshot()
}

func (s *Session) MatchResult() (game.MatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.Result()
}

// Winner 得分最高的玩家名；房间为空时返回空串
func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.match.Leader(); p != nil {
		return p.Name
	}
	return ""
}

func (s *Session) State() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.State
}

// Active 仍处于 Waiting 或 Playing
func (s *Session) Active() bool {
	st := s.State()
	return st == game.StateWaiting || st == game.StatePlaying
}

func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.match.Players)
}

// PlayerIDs 按加入顺序返回成员
func (s *Session) PlayerIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.match.Players))
	for _, p := range s.match.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// RoomInfo 房间列表中的一项
type RoomInfo struct {
	Code    string `json:"code"`
	State   string `json:"state"`
	Players int    `json:"players"`
	Frame   uint64 `json:"frame"`
}

func (s *Session) Info() RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RoomInfo{
		Code:    s.Code,
		State:   s.match.State.String(),
		Players: len(s.match.Players),
		Frame:   s.match.Frame,
	}
}
