package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sudooom.im.client/internal/archive"
	"sudooom.im.client/internal/chat"
	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/handler"
	"sudooom.im.client/internal/health"
	imNats "sudooom.im.client/internal/nats"
	imRedis "sudooom.im.client/internal/redis"
	"sudooom.im.client/internal/router"
	"sudooom.im.client/internal/snowflake"
	"sudooom.im.client/internal/transport"
)

const shutdownTimeout = 5 * time.Second

func runClient(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if identity != "" {
		cfg.Session.Identity = identity
	}
	cfg.Session.Identity = strings.TrimSpace(cfg.Session.Identity)
	if cfg.Session.Identity == "" {
		return errors.New("identity is required (--identity or session.identity)")
	}
	setLogLevel(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return err
	}

	sess := chat.New(transport.NewClient(cfg.Backend), chat.Options{
		Identity:     cfg.Session.Identity,
		UDPPort:      cfg.Session.UDPPort,
		PollInterval: cfg.Poller.Interval,
		Node:         node,
	})

	// 连接 Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = imRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		sess.Store().Subscribe(imRedis.NewMirror(redisClient, cfg.Session.Identity, cfg.Redis.TTL))
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	}

	// 连接 NATS
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = imNats.Connect(cfg.NATS)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		sess.Store().Subscribe(imNats.NewNotifier(nc, cfg.NATS.SubjectPrefix, cfg.Session.Identity))
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// 连接数据库
	var db *pgxpool.Pool
	if cfg.Database.Enabled {
		db, err = archive.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := archive.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		batcher := archive.NewBatcher(db, node, cfg.Session.Identity, archive.Config{
			BatchSize:     cfg.Database.BatchSize,
			FlushInterval: cfg.Database.FlushInterval,
		})
		batcher.Start()
		defer batcher.Stop()
		sess.Store().Subscribe(batcher)
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)
	}

	// 登录 -> 历史同步 -> 轮询
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close(context.Background())
		return fmt.Errorf("start session: %w", err)
	}

	engine := router.SetupRouter(cfg,
		health.NewChecker(sess, nc, redisClient, db),
		sess,
		handler.NewConversationHandler(sess),
		handler.NewMessageHandler(sess),
		handler.NewDirectoryHandler(sess),
	)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if err := sess.Close(shutdownCtx); err != nil {
			logger.Warn("Logout failed", "identity", sess.Identity(), "error", err)
		}
		return nil
	})

	logger.Info("Client started",
		"name", cfg.App.Name,
		"identity", cfg.Session.Identity,
		"backend", cfg.Backend.Addr,
		"warm", sess.Warm(),
	)

	err = g.Wait()
	logger.Info("Client stopped")
	return err
}

// setLogLevel 无法识别的级别保持 info
func setLogLevel(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	logLevel.Set(l)
}
