package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// 状态值
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusDisabled     = "disabled"
	StatusLoggedIn     = "logged_in"
	StatusLoggedOut    = "logged_out"
)

// Status 健康状态
type Status struct {
	Session  string `json:"session"`
	Warm     bool   `json:"warm"`
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

// SessionState 会话状态
type SessionState interface {
	LoggedIn() bool
	Warm() bool
}

// Checker 健康检查器
// 未启用的依赖传 nil，状态为 disabled，不影响健康判断
type Checker struct {
	session     SessionState
	nc          *nats.Conn
	redisClient *redis.Client
	db          *pgxpool.Pool
}

// NewChecker 创建健康检查器
func NewChecker(session SessionState, nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool) *Checker {
	return &Checker{
		session:     session,
		nc:          nc,
		redisClient: redisClient,
		db:          db,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Session:  StatusLoggedOut,
		NATS:     StatusDisabled,
		Redis:    StatusDisabled,
		Database: StatusDisabled,
	}

	// 检查会话
	if h.session != nil && h.session.LoggedIn() {
		status.Session = StatusLoggedIn
		status.Warm = h.session.Warm()
	}

	// 检查 NATS
	if h.nc != nil {
		if h.nc.IsConnected() {
			status.NATS = StatusConnected
		} else {
			status.NATS = StatusDisconnected
		}
	}

	// 检查 Redis
	if h.redisClient != nil {
		redisCtx, redisCancel := context.WithTimeout(ctx, 2*time.Second)
		defer redisCancel()

		if err := h.redisClient.Ping(redisCtx).Err(); err == nil {
			status.Redis = StatusConnected
		} else {
			status.Redis = StatusDisconnected
		}
	}

	// 检查 PostgreSQL
	if h.db != nil {
		dbCtx, dbCancel := context.WithTimeout(ctx, 2*time.Second)
		defer dbCancel()

		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = StatusConnected
		} else {
			status.Database = StatusDisconnected
		}
	}

	return status
}

// Healthy 已登录且所有启用的依赖都已连接
func (s *Status) Healthy() bool {
	return s.Session == StatusLoggedIn &&
		s.NATS != StatusDisconnected &&
		s.Redis != StatusDisconnected &&
		s.Database != StatusDisconnected
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
