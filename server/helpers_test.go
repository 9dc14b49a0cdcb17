package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"netpong/game"
	"netpong/store"
)

// fakeConn 记录收到的消息；fail 为 true 时模拟发送队列已满
type fakeConn struct {
	mu   sync.Mutex
	msgs [][]byte
	fail bool
}

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrSendQueueFull
	}
	f.msgs = append(f.msgs, b)
	return nil
}

// messages 解码后的全部消息
func (f *fakeConn) messages() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.msgs))
	for _, b := range f.msgs {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// find 第一条指定类型的消息
func (f *fakeConn) find(kind string) (map[string]any, bool) {
	for _, m := range f.messages() {
		if m["type"] == kind {
			return m, true
		}
	}
	return nil, false
}

func (f *fakeConn) count(kind string) int {
	n := 0
	for _, m := range f.messages() {
		if m["type"] == kind {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []store.MatchRecord
	err     error
}

func (f *fakeRecorder) RecordMatch(_ context.Context, rec store.MatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) all() []store.MatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.MatchRecord(nil), f.records...)
}

// newTestRegistry 注册表 + 可断言的日志
func newTestRegistry(t *testing.T, rec MatchRecorder) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := NewRegistry(Options{
		Rules:    game.DefaultRules(),
		Logger:   zap.New(core).Sugar(),
		Recorder: rec,
	})
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })
	return reg, logs
}

// withMatch 在持锁状态下布置比赛场景
func (s *Session) withMatch(fn func(m *game.Match)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.match)
}

// schedulerRunning 房间当前是否挂着调度器
func (r *Registry) schedulerRunning(code string) bool {
	r.mu.RLock()
	e, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched != nil
}
