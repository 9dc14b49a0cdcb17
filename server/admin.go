package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"netpong/store"
)

// Leaderboard 排行榜查询；store.Memory 与 store.Postgres 均满足
type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]store.Standing, error)
}

// Admin 只读的管理与监控接口
type Admin struct {
	reg   *Registry
	board Leaderboard
	log   *zap.SugaredLogger
}

func NewAdmin(reg *Registry, board Leaderboard, log *zap.SugaredLogger) *Admin {
	return &Admin{reg: reg, board: board, log: log}
}

// Register 挂载到 mux
func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("/rooms", a.HandleRooms)
	mux.HandleFunc("/leaderboard", a.HandleLeaderboard)
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/healthz", a.HandleHealth)
}

// HandleRooms GET /rooms 列出活跃房间：{success, rooms, count}
func (a *Admin) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rooms := a.reg.Rooms()
	writeJSON(w, map[string]any{"success": true, "rooms": rooms, "count": len(rooms)})
}

// HandleLeaderboard GET /leaderboard?limit=10：{success, data, count}
func (a *Admin) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := store.DefaultLeaderboardLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	standings := []store.Standing{}
	if a.board != nil {
		got, err := a.board.Leaderboard(r.Context(), limit)
		if err != nil {
			a.log.Errorw("leaderboard query failed", "error", err)
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		if got != nil {
			standings = got
		}
	}
	writeJSON(w, map[string]any{"success": true, "data": standings, "count": len(standings)})
}

// HandleMetrics GET /metrics 输出进程级运行指标
func (a *Admin) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := a.reg.Metrics().Snapshot()
	payload["rooms_active"] = len(a.reg.Rooms())
	writeJSON(w, payload)
}

func (a *Admin) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
