package server

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"netpong/game"
	"netpong/protocol"
	"netpong/store"
)

const (
	// CodeLength 房间码长度
	CodeLength = 4
	// 去掉易混淆的 I、O、0、1
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 1000
)

// MatchRecorder 持久化协作方：比赛结束时以双方视角各写入一次
type MatchRecorder interface {
	RecordMatch(ctx context.Context, rec store.MatchRecord) error
}

// Options Registry 的依赖
type Options struct {
	Rules         game.Rules
	Logger        *zap.SugaredLogger
	Metrics       *Metrics
	Recorder      MatchRecorder // 可为 nil：不记录比赛结果
	RecordTimeout time.Duration
}

// roomEntry 注册表中的一个房间；mu 串行化本房间的成员变化，房间之间互不竞争
type roomEntry struct {
	mu      sync.Mutex
	session *Session
	sched   *scheduler
	started bool // 调度器只启动一次
	closed  bool
}

// Registry 管理所有房间的生命周期与玩家绑定
//
// 锁顺序：roomEntry.mu → Registry.mu → Session.mu。Registry.mu 只保护两张映射表，
// 不在持有期间做 I/O 或推进模拟。
type Registry struct {
	rules         game.Rules
	log           *zap.SugaredLogger
	metrics       *Metrics
	recorder      MatchRecorder
	recordTimeout time.Duration

	mu      sync.RWMutex
	rooms   map[string]*roomEntry // code → room
	members map[string]member     // playerID → code + outbound

	pending sync.WaitGroup // 尚未完成的持久化写入
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Metrics == nil {
		opts.Metrics = &Metrics{}
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 5 * time.Second
	}
	if opts.Rules.TickRate <= 0 {
		opts.Rules = game.DefaultRules()
	}
	return &Registry{
		rules:         opts.Rules,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		recorder:      opts.Recorder,
		recordTimeout: opts.RecordTimeout,
		rooms:         make(map[string]*roomEntry),
		members:       make(map[string]member),
	}
}

func (r *Registry) Metrics() *Metrics { return r.metrics }

// generateCodeLocked 生成当前未被占用的房间码，调用方持有 r.mu 写锁
func (r *Registry) generateCodeLocked() (string, error) {
	n := big.NewInt(int64(len(codeChars)))
	b := make([]byte, CodeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		for i := range b {
			idx, err := crand.Int(crand.Reader, n)
			if err != nil {
				return "", fmt.Errorf("generate room code: %w", err)
			}
			b[i] = codeChars[idx.Int64()]
		}
		if _, exists := r.rooms[string(b)]; !exists {
			return string(b), nil
		}
	}
	return "", ErrNoCodeFree
}

// Create 新建房间并让创建者成为 0 号玩家，返回房间码。
// 玩家仍绑定在旧房间时先按断开处理（通知对手、必要时关闭旧房间），再建新房。
func (r *Registry) Create(playerID, name string, out Outbound) (string, error) {
	r.Disconnect(playerID)

	r.mu.Lock()
	// 同一玩家 ID 被并发使用时才会出现
	if _, bound := r.members[playerID]; bound {
		r.mu.Unlock()
		return "", ErrAlreadyInRoom
	}
	code, err := r.generateCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return "", err
	}
	s := NewSession(code, r.rules, nil)
	if err := s.Join(playerID, name); err != nil {
		r.mu.Unlock()
		return "", err
	}
	r.rooms[code] = &roomEntry{session: s}
	r.members[playerID] = member{code: code, out: out}
	r.mu.Unlock()

	r.metrics.IncRoomsCreated()
	r.log.Infow("room created", "room", code, "player_id", playerID, "player_name", name)
	return code, nil
}

// Join 按房间码（不区分大小写）加入；凑满两人时启动该房间的调度器。
// 目标房间存在且玩家绑定在别的房间时，先离开旧房间。
func (r *Registry) Join(code, playerID, name string, out Outbound) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.RLock()
	e, ok := r.rooms[code]
	m, bound := r.members[playerID]
	r.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}
	if bound {
		if m.code == code {
			return ErrAlreadyInRoom
		}
		r.Disconnect(playerID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrRoomNotFound
	}
	r.mu.Lock()
	if _, bound := r.members[playerID]; bound {
		r.mu.Unlock()
		return ErrAlreadyInRoom
	}
	if err := e.session.Join(playerID, name); err != nil {
		r.mu.Unlock()
		r.log.Debugw("join rejected", "room", code, "player_id", playerID, "error", err)
		return err
	}
	r.members[playerID] = member{code: code, out: out}
	r.mu.Unlock()

	if e.session.PlayerCount() == game.MaxPlayers && !e.started {
		e.started = true
		e.sched = r.startScheduler(code, e)
	}
	r.log.Infow("player joined", "room", code, "player_id", playerID, "player_name", name)
	return nil
}

// Disconnect 玩家断开：通知对手、离开房间，房间清空时停止调度器并删除房间。
// 重复调用或未知玩家均为空操作。
func (r *Registry) Disconnect(playerID string) {
	r.mu.RLock()
	m, ok := r.members[playerID]
	var e *roomEntry
	if ok {
		e = r.rooms[m.code]
	}
	r.mu.RUnlock()
	if !ok {
		return
	}
	if e == nil {
		r.mu.Lock()
		delete(r.members, playerID)
		r.mu.Unlock()
		return
	}

	e.mu.Lock()
	// 房间已被 Evict 关闭：成员绑定已由 Evict 解除，房间码可能已被新房间复用
	if e.closed {
		e.mu.Unlock()
		return
	}
	_ = r.Broadcast(m.code, protocol.PlayerDisconnected{PlayerID: playerID}, playerID)
	e.session.Leave(playerID)

	var (
		stop   *scheduler
		closed bool
	)
	r.mu.Lock()
	delete(r.members, playerID)
	if e.session.PlayerCount() == 0 {
		e.closed = true
		closed = true
		if r.rooms[m.code] == e {
			delete(r.rooms, m.code)
		}
		stop, e.sched = e.sched, nil
	}
	r.mu.Unlock()
	e.mu.Unlock()

	r.log.Infow("player disconnected", "room", m.code, "player_id", playerID)
	if closed {
		// 在锁外等待调度器退出，调度器退出时需要获取 e.mu
		if stop != nil {
			stop.stop()
		}
		r.metrics.IncRoomsClosed()
		r.log.Infow("room closed", "room", m.code)
	}
}

// Evict 强制关闭房间：通知并解绑全部成员，停止调度器
func (r *Registry) Evict(code string) bool {
	code = strings.ToUpper(code)
	r.mu.RLock()
	e, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	_ = r.Broadcast(code, protocol.Error{Message: "room closed"}, "")
	ids := e.session.PlayerIDs()
	r.mu.Lock()
	for _, id := range ids {
		delete(r.members, id)
	}
	if r.rooms[code] == e {
		delete(r.rooms, code)
	}
	r.mu.Unlock()
	for _, id := range ids {
		e.session.Leave(id)
	}
	e.closed = true
	stop := e.sched
	e.sched = nil
	e.mu.Unlock()

	if stop != nil {
		stop.stop()
	}
	r.metrics.IncRoomsClosed()
	r.log.Infow("room evicted", "room", code, "players", len(ids))
	return true
}

// Shutdown 关闭所有房间，并等待未完成的持久化写入
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	r.mu.RUnlock()

	for _, code := range codes {
		r.Evict(code)
	}

	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for pending match records: %w", ctx.Err())
	}
}

type target struct {
	id  string
	out Outbound
}

// Broadcast 向房间内除 exclude 之外的成员发送消息。
// 单个接收方失败只记录，不影响其它接收方；返回聚合后的错误。
func (r *Registry) Broadcast(code string, msg protocol.Outbound, exclude string) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	r.mu.RLock()
	e, ok := r.rooms[code]
	var targets []target
	if ok {
		for _, id := range e.session.PlayerIDs() {
			if id == exclude {
				continue
			}
			if m, bound := r.members[id]; bound {
				targets = append(targets, target{id: id, out: m.out})
			}
		}
	}
	r.mu.RUnlock()

	var errs error
	for _, t := range targets {
		if err := t.out.Send(b); err != nil {
			r.metrics.IncSendFailures()
			r.log.Warnw("send failed", "room", code, "player_id", t.id, "type", msg.Kind(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", t.id, err))
		}
	}
	return errs
}

// Notify 发送给单个玩家
func (r *Registry) Notify(playerID string, msg protocol.Outbound) error {
	r.mu.RLock()
	m, ok := r.members[playerID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := m.out.Send(b); err != nil {
		r.metrics.IncSendFailures()
		return fmt.Errorf("send to %s: %w", playerID, err)
	}
	return nil
}

// sessionOf 查找玩家所在房间；玩家或房间已不存在时返回 nil
func (r *Registry) sessionOf(playerID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[playerID]
	if !ok {
		return nil
	}
	if e, ok := r.rooms[m.code]; ok {
		return e.session
	}
	return nil
}

// ApplyInput 过期引用为空操作
func (r *Registry) ApplyInput(playerID string, direction float64) bool {
	if s := r.sessionOf(playerID); s != nil {
		return s.ApplyInput(playerID, direction)
	}
	return false
}

func (r *Registry) RecordLatency(playerID string, ms float64) bool {
	if s := r.sessionOf(playerID); s != nil {
		return s.RecordLatency(playerID, ms)
	}
	return false
}

// RoomOf 玩家当前所在的房间码
func (r *Registry) RoomOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[playerID]
	return m.code, ok
}

// Lookup 按房间码查找（不区分大小写）
func (r *Registry) Lookup(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Rooms 列出活跃房间，按房间码排序
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.rooms))
	for _, e := range r.rooms {
		sessions = append(sessions, e.session)
	}
	r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// recordResult 异步写入双方视角的比赛记录；失败不影响已广播的结果
func (r *Registry) recordResult(code string, res game.MatchResult) {
	if r.recorder == nil {
		return
	}
	now := time.Now().UTC()
	records := []store.MatchRecord{
		{
			PlayerName:    res.PlayerName,
			OpponentName:  res.OpponentName,
			PlayerScore:   res.PlayerScore,
			OpponentScore: res.OpponentScore,
			AvgLatencyMs:  res.AvgLatencyMs,
			PlayedAt:      now,
		},
		{
			PlayerName:    res.OpponentName,
			OpponentName:  res.PlayerName,
			PlayerScore:   res.OpponentScore,
			OpponentScore: res.PlayerScore,
			AvgLatencyMs:  res.AvgLatencyMs,
			PlayedAt:      now,
		},
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.recordTimeout)
		defer cancel()
		for _, rec := range records {
			if err := r.recorder.RecordMatch(ctx, rec); err != nil {
				r.metrics.IncRecordFailures()
				r.log.Errorw("record match failed", "room", code, "player_name", rec.PlayerName, "error", err)
			}
		}
	}()
}
