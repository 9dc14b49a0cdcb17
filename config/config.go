// Package config 加载 YAML 配置文件，未出现的字段保持默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"netpong/game"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Game   GameConfig   `yaml:"game"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SendQueueSize int           `yaml:"send_queue_size"` // 每个连接的发送队列长度
	PingPeriod    time.Duration `yaml:"ping_period"`     // WebSocket 心跳间隔
	PongWait      time.Duration `yaml:"pong_wait"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"` // 同时输出到 stderr
}

type GameConfig struct {
	TickRate     int     `yaml:"tick_rate"`
	WinningScore int     `yaml:"winning_score"`
	CanvasWidth  float64 `yaml:"canvas_width"`
	CanvasHeight float64 `yaml:"canvas_height"`
	PaddleOffset float64 `yaml:"paddle_offset"`
	PaddleWidth  float64 `yaml:"paddle_width"`
	PaddleHeight float64 `yaml:"paddle_height"`
	PaddleSpeed  float64 `yaml:"paddle_speed"`
	BallRadius   float64 `yaml:"ball_radius"`
	BallMaxSpeed float64 `yaml:"ball_max_speed"`
	LaunchSpeed  float64 `yaml:"launch_speed"`
	HitSpeedup   float64 `yaml:"hit_speedup"`
	Spin         float64 `yaml:"spin"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"` // memory | postgres
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// Default 不依赖任何外部服务即可运行的配置
func Default() Config {
	r := game.DefaultRules()
	return Config{
		Server: ServerConfig{
			Addr:          ":8000",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			SendQueueSize: 64,
			PingPeriod:    25 * time.Second,
			PongWait:      60 * time.Second,
		},
		Log: LogConfig{
			File:       "netpong.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Console:    true,
		},
		Game: GameConfig{
			TickRate:     r.TickRate,
			WinningScore: r.WinningScore,
			CanvasWidth:  r.CanvasWidth,
			CanvasHeight: r.CanvasHeight,
			PaddleOffset: r.PaddleOffset,
			PaddleWidth:  r.PaddleWidth,
			PaddleHeight: r.PaddleHeight,
			PaddleSpeed:  r.PaddleSpeed,
			BallRadius:   r.BallRadius,
			BallMaxSpeed: r.BallMaxSpeed,
			LaunchSpeed:  r.LaunchSpeed,
			HitSpeedup:   r.HitSpeedup,
			Spin:         r.Spin,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

// Load 读取 path 覆盖默认值；文件不存在时直接返回默认配置
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate 拒绝会让模拟失效的取值
func (c Config) Validate() error {
	g := c.Game
	switch {
	case c.Server.Addr == "":
		return errors.New("config: server.addr is required")
	case c.Server.SendQueueSize <= 0:
		return errors.New("config: server.send_queue_size must be > 0")
	case g.TickRate <= 0 || g.TickRate > 1000:
		return fmt.Errorf("config: game.tick_rate %d out of range (1..1000)", g.TickRate)
	case g.WinningScore <= 0:
		return errors.New("config: game.winning_score must be > 0")
	case g.CanvasWidth <= 0 || g.CanvasHeight <= 0:
		return errors.New("config: game canvas must be positive")
	case g.PaddleHeight <= 0 || g.PaddleHeight >= g.CanvasHeight:
		return errors.New("config: game.paddle_height must fit in the canvas")
	case g.BallRadius <= 0 || g.BallMaxSpeed <= 0 || g.LaunchSpeed <= 0:
		return errors.New("config: ball radius and speeds must be positive")
	case g.LaunchSpeed > g.BallMaxSpeed:
		return errors.New("config: game.launch_speed exceeds ball_max_speed")
	case g.HitSpeedup <= 1:
		return errors.New("config: game.hit_speedup must be > 1")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// Rules 转换为模拟使用的规则
func (g GameConfig) Rules() game.Rules {
	return game.Rules{
		CanvasWidth:  g.CanvasWidth,
		CanvasHeight: g.CanvasHeight,
		PaddleOffset: g.PaddleOffset,
		PaddleWidth:  g.PaddleWidth,
		PaddleHeight: g.PaddleHeight,
		PaddleSpeed:  g.PaddleSpeed,
		BallRadius:   g.BallRadius,
		BallMaxSpeed: g.BallMaxSpeed,
		LaunchSpeed:  g.LaunchSpeed,
		HitSpeedup:   g.HitSpeedup,
		Spin:         g.Spin,
		WinningScore: g.WinningScore,
		TickRate:     g.TickRate,
	}
}
