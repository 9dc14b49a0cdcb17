package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netpong/store"
)

func newTestAdmin(t *testing.T) (*http.ServeMux, *Registry, *store.Memory) {
	t.Helper()
	reg, _ := newTestRegistry(t, nil)
	board := store.NewMemory()
	mux := http.NewServeMux()
	NewAdmin(reg, board, zap.NewNop().Sugar()).Register(mux)
	return mux, reg, board
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAdmin_Rooms(t *testing.T) {
	mux, reg, _ := newTestAdmin(t)
	code, err := reg.Create("a", "Alice", &fakeConn{})
	require.NoError(t, err)

	rec := get(t, mux, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool       `json:"success"`
		Rooms   []RoomInfo `json:"rooms"`
		Count   int        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Rooms, 1)
	assert.Equal(t, RoomInfo{Code: code, State: "waiting", Players: 1}, body.Rooms[0])
}

func TestAdmin_Leaderboard(t *testing.T) {
	mux, _, board := newTestAdmin(t)
	ctx := context.Background()
	require.NoError(t, board.RecordMatch(ctx, store.MatchRecord{PlayerName: "Alice", OpponentName: "Bob", PlayerScore: 5, OpponentScore: 2}))
	require.NoError(t, board.RecordMatch(ctx, store.MatchRecord{PlayerName: "Bob", OpponentName: "Alice", PlayerScore: 2, OpponentScore: 5}))

	rec := get(t, mux, "/leaderboard?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool             `json:"success"`
		Data    []store.Standing `json:"data"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Alice", body.Data[0].PlayerName)
	assert.Equal(t, 1, body.Data[0].TotalWins)

	for _, bad := range []string{"/leaderboard?limit=abc", "/leaderboard?limit=0"} {
		assert.Equal(t, http.StatusBadRequest, get(t, mux, bad).Code, bad)
	}
}

func TestAdmin_MetricsAndHealth(t *testing.T) {
	mux, reg, _ := newTestAdmin(t)
	_, err := reg.Create("a", "Alice", &fakeConn{})
	require.NoError(t, err)

	rec := get(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	assert.Equal(t, 1.0, m["rooms_created"])
	assert.Equal(t, 1.0, m["rooms_active"])

	rec = get(t, mux, "/healthz")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAdmin_EmptyLeaderboardEnvelope(t *testing.T) {
	mux, _, _ := newTestAdmin(t)
	rec := get(t, mux, "/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[],"count":0}`, rec.Body.String())

	rec = get(t, mux, "/rooms")
	assert.JSONEq(t, `{"success":true,"rooms":[],"count":0}`, rec.Body.String())
}
