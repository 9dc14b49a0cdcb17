package server

import (
	"sync/atomic"
	"time"
)

// Metrics 进程级运行指标（用于监控与调试），所有房间共享，仅做原子计数
type Metrics struct {
	TickCount       int64 // 所有房间累计 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
	RoomsCreated    int64
	RoomsClosed     int64
	MatchesFinished int64
	ScoreEvents     int64
	SendFailures    int64 // 单个接收方发送失败次数（不影响其它接收方）
	RecordFailures  int64 // 持久化写入失败次数
	InvalidMessages int64 // 无法解析的入站消息
}

func (m *Metrics) AddTick(d time.Duration) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, d.Nanoseconds())
}

func (m *Metrics) IncRoomsCreated()    { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncRoomsClosed()     { atomic.AddInt64(&m.RoomsClosed, 1) }
func (m *Metrics) IncMatchesFinished() { atomic.AddInt64(&m.MatchesFinished, 1) }
func (m *Metrics) IncScoreEvents()     { atomic.AddInt64(&m.ScoreEvents, 1) }
func (m *Metrics) IncSendFailures()    { atomic.AddInt64(&m.SendFailures, 1) }
func (m *Metrics) IncRecordFailures()  { atomic.AddInt64(&m.RecordFailures, 1) }
func (m *Metrics) IncInvalidMessages() { atomic.AddInt64(&m.InvalidMessages, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"rooms_created":    atomic.LoadInt64(&m.RoomsCreated),
		"rooms_closed":     atomic.LoadInt64(&m.RoomsClosed),
		"matches_finished": atomic.LoadInt64(&m.MatchesFinished),
		"score_events":     atomic.LoadInt64(&m.ScoreEvents),
		"send_failures":    atomic.LoadInt64(&m.SendFailures),
		"record_failures":  atomic.LoadInt64(&m.RecordFailures),
		"invalid_messages": atomic.LoadInt64(&m.InvalidMessages),
	}
}
