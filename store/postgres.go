package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const insertMatchSQL = `
INSERT INTO leaderboard (player_name, opponent_name, player_score, opponent_score, avg_latency_ms, match_date)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))`

// 胜场 = 本方得分高于对手的记录数
const leaderboardSQL = `
SELECT player_name,
       COUNT(*) FILTER (WHERE player_score > opponent_score) AS total_wins,
       COUNT(*)                                              AS total_matches,
       COALESCE(SUM(player_score), 0)                        AS total_score,
       COALESCE(AVG(avg_latency_ms), 0)                      AS avg_latency_ms
FROM leaderboard
GROUP BY player_name
ORDER BY total_wins DESC, total_score DESC, player_name ASC
LIMIT $1`

// Postgres 基于 pgxpool 的排行榜存储
type Postgres struct {
	pool *pgxpool.Pool
}

// PostgresConfig 连接参数
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// OpenPostgres 建立连接池、检查连通性并确保表结构存在
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate 执行内嵌的建表语句（幂等）
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

func (p *Postgres) RecordMatch(ctx context.Context, rec MatchRecord) error {
	var playedAt any
	if !rec.PlayedAt.IsZero() {
		playedAt = rec.PlayedAt
	}
	_, err := p.pool.Exec(ctx, insertMatchSQL,
		rec.PlayerName, rec.OpponentName, rec.PlayerScore, rec.OpponentScore, rec.AvgLatencyMs, playedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	rows, err := p.pool.Query(ctx, leaderboardSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var (
			s       Standing
			wins    int64
			matches int64
			score   int64
		)
		if err := rows.Scan(&s.PlayerName, &wins, &matches, &score, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		s.TotalWins = int(wins)
		s.TotalMatches = int(matches)
		s.TotalScore = int(score)
		s.AvgLatencyMs = round(s.AvgLatencyMs, 2)
		if matches > 0 {
			s.WinRate = round(float64(wins)/float64(matches)*100, 1)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
