package server

import (
	"context"
	"time"

	"netpong/game"
	"netpong/protocol"
)

// scheduler 单个房间的 Tick 循环：推进模拟 → 广播快照 → 处理得分/结束 → 等待下一帧
type scheduler struct {
	code    string
	session *Session
	reg     *Registry
	period  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// startScheduler 启动房间的 Tick 协程；调用方持有 e.mu
func (r *Registry) startScheduler(code string, e *roomEntry) *scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &scheduler{
		code:    code,
		session: e.session,
		reg:     r,
		period:  r.rules.FramePeriod(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, e)
	r.log.Debugw("scheduler started", "room", code, "period", s.period)
	return s
}

// stop 取消并等待协程退出
func (s *scheduler) stop() {
	s.cancel()
	<-s.done
}

func (s *scheduler) run(ctx context.Context, e *roomEntry) {
	defer close(s.done)
	defer s.reg.retire(e, s)

	timer := time.NewTimer(s.period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.reg.log.Debugw("scheduler cancelled", "room", s.code)
			return
		case <-timer.C:
		}
		if ctx.Err() != nil || !s.session.Active() {
			return
		}

		// 核心循环：推进世界 → 广播结果 → 处理事件
		start := time.Now()
		ev, snap := s.session.Step(start)
		_ = s.reg.Broadcast(s.code, protocol.GameState{Snapshot: snap}, "")

		switch ev {
		case game.EventScored:
			s.reg.metrics.IncScoreEvents()
			_ = s.reg.Broadcast(s.code, protocol.ScoreEvent{}, "")
		case game.EventMatchOver:
			s.finish()
			return
		}

		elapsed := time.Since(start)
		s.reg.metrics.AddTick(elapsed)
		timer.Reset(max(0, s.period-elapsed))
	}
}

// finish 比赛结束：交给持久化协作方，广播胜者
func (s *scheduler) finish() {
	if res, ok := s.session.MatchResult(); ok {
		s.reg.recordResult(s.code, res)
	}
	winner := s.session.Winner()
	s.reg.metrics.IncMatchesFinished()
	_ = s.reg.Broadcast(s.code, protocol.GameOver{Winner: winner}, "")
	s.reg.log.Infow("match over", "room", s.code, "winner", winner)
}

// retire 协程自行退出时解除与房间的绑定
func (r *Registry) retire(e *roomEntry, s *scheduler) {
	e.mu.Lock()
	if e.sched == s {
		e.sched = nil
	}
	e.mu.Unlock()
}
