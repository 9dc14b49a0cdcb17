package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"netpong/config"
	"netpong/server"
	"netpong/store"
)

// NetPong 入口：加载配置，启动 WebSocket 游戏服务与管理接口
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "netpong:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath string
		addr    string
	)
	flag.StringVar(&cfgPath, "config", "netpong.yaml", "path to YAML config file")
	flag.StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := server.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Infow("store ready", "driver", cfg.Store.Driver)

	reg := server.NewRegistry(server.Options{
		Rules:    cfg.Game.Rules(),
		Logger:   log.Named("registry"),
		Metrics:  &server.Metrics{},
		Recorder: st,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", server.NewGateway(reg, cfg.Server, log.Named("ws")))
	server.NewAdmin(reg, st, log.Named("admin")).Register(mux)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("NetPong listening", "addr", cfg.Server.Addr, "tick_rate", cfg.Game.TickRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 优雅退出（Ctrl+C）
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return multierr.Combine(
		srv.Shutdown(shutdownCtx),
		reg.Shutdown(shutdownCtx),
	)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	default:
		return store.NewMemory(), nil
	}
}
