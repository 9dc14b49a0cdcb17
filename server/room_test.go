package server

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpong/game"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("ABCD", game.DefaultRules(), rand.New(rand.NewSource(3)))
}

func TestSession_JoinAndLeave(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Join("a", "Alice"))
	assert.Equal(t, game.StateWaiting, s.State())
	assert.True(t, s.Active())

	require.NoError(t, s.Join("b", "Bob"))
	assert.Equal(t, game.StatePlaying, s.State())
	assert.Equal(t, []string{"a", "b"}, s.PlayerIDs())

	require.ErrorIs(t, s.Join("c", "Carol"), ErrRoomFull)
	assert.Equal(t, 2, s.PlayerCount())

	assert.True(t, s.Leave("b"))
	assert.Equal(t, game.StateFinished, s.State())
	assert.False(t, s.Active())
	assert.False(t, s.Leave("b"))

	require.ErrorIs(t, s.Join("c", "Carol"), ErrMatchFinished)
}

func TestSession_RecordLatency(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Join("a", "Alice"))

	assert.True(t, s.RecordLatency("a", 20))
	assert.True(t, s.RecordLatency("a", 40))
	assert.False(t, s.RecordLatency("a", -1))
	assert.False(t, s.RecordLatency("a", math.NaN()))
	assert.False(t, s.RecordLatency("a", math.Inf(1)))
	assert.False(t, s.RecordLatency("ghost", 10))

	snap := s.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.Equal(t, 30.0, snap.Players[0].LatencyMs)
}

func TestSession_StepUsesWallClock(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Join("a", "Alice"))
	require.NoError(t, s.Join("b", "Bob"))

	start := time.Now()
	s.withMatch(func(m *game.Match) {
		m.Ball.Position = game.Vector2{X: 400, Y: 300}
		m.Ball.Velocity = game.Vector2{X: 300, Y: 0}
	})
	s.lastUpdate = start

	ev, snap := s.Step(start.Add(10 * time.Millisecond))
	assert.Equal(t, game.EventNone, ev)
	assert.Equal(t, uint64(1), snap.Frame)
	assert.InDelta(t, 403.0, snap.Ball.X, 1e-6)

	// 间隔过长时按上限推进
	_, snap = s.Step(start.Add(2 * time.Second))
	assert.InDelta(t, 413.0, snap.Ball.X, 1e-2)
}

func TestSession_Winner(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, "", s.Winner())
	require.NoError(t, s.Join("a", "Alice"))
	require.NoError(t, s.Join("b", "Bob"))
	s.withMatch(func(m *game.Match) { m.Players[1].Score = 3 })
	assert.Equal(t, "Bob", s.Winner())

	info := s.Info()
	assert.Equal(t, RoomInfo{Code: "ABCD", State: "playing", Players: 2}, info)
}
