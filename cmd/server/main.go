// shiftopt 排班优化服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paiban/shiftopt/internal/cache"
	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/internal/database"
	"github.com/paiban/shiftopt/internal/events"
	"github.com/paiban/shiftopt/internal/handler"
	"github.com/paiban/shiftopt/internal/metrics"
	"github.com/paiban/shiftopt/internal/repository"
	"github.com/paiban/shiftopt/internal/service"
	"github.com/paiban/shiftopt/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// 日志尚未初始化
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger.Init(cfg.Log)

	fmt.Printf("shiftopt 排班优化服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n\n", BuildTime, GitCommit)

	m := metrics.Default()
	deps := service.Deps{
		Metrics:     m,
		CachePrefix: cfg.Cache.Prefix,
	}

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Roster = repository.NewRosterRepository(db)
		deps.Assignments = repository.NewScheduleRepository(db)
	} else {
		logger.Warn().Msg("数据库未启用，按排班表生成接口不可用")
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Cache = cache.NewRedisCache(client, cfg.Cache.TTL)
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := events.NewRabbitPublisher(&cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	svc, err := service.NewScheduleService(cfg.Optimizer, deps)
	if err != nil {
		return err
	}
	defer svc.Close()

	routerCfg := handler.RouterConfig{
		Service:        svc,
		Metrics:        m,
		Build:          handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
		MaxBodyBytes:   cfg.App.MaxBodyBytes,
		RequestTimeout: cfg.App.RequestTimeout,
		RateLimit:      cfg.App.RateLimit,
		Weights:        cfg.Optimizer.Engine.Weights,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.App.RequestTimeout,
		WriteTimeout: cfg.App.RequestTimeout + cfg.App.ShutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Bool("rabbitmq", cfg.RabbitMQ.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	}

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}
