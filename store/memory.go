package store

import (
	"context"
	"sync"
	"time"
)

// Memory 进程内存储，用于开发环境与测试；进程退出后数据丢失
type Memory struct {
	mu      sync.RWMutex
	records []MatchRecord
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) RecordMatch(ctx context.Context, rec MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = m.now().UTC()
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return aggregate(m.records, limit), nil
}

// Records 按写入顺序返回全部记录的副本
func (m *Memory) Records() []MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MatchRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) Close() {}
