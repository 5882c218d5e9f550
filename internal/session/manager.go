package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/transport"
)

// Manager 会话管理
// 登录成功之前，轮询、历史同步和发送都不可用
type Manager struct {
	requester transport.Requester

	mu       sync.RWMutex
	identity string
	loggedIn bool

	logger *slog.Logger
}

// NewManager 创建会话管理器
func NewManager(requester transport.Requester) *Manager {
	return &Manager{
		requester: requester,
		logger:    slog.Default(),
	}
}

// Login 以 identity 登录，auxPort 为客户端的辅助 UDP 端口
// 后端返回失败时保持未登录状态
func (m *Manager) Login(ctx context.Context, identity string, auxPort int) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return apperrors.ErrInvalidParams.WithMessage("identity is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggedIn {
		return apperrors.ErrAlreadyLoggedIn
	}

	_, err := m.requester.Do(ctx, proto.ActionLogin, proto.LoginPayload{
		Username: identity,
		UDPPort:  auxPort,
	})
	if err != nil {
		m.logger.Warn("Login failed", "identity", identity, "error", err)
		return err
	}

	m.identity = identity
	m.loggedIn = true
	m.logger.Info("Logged in", "identity", identity, "udpPort", auxPort)
	return nil
}

// Logout 登出
// 先清理本地状态，再尽力通知后端；通知失败只返回错误，不影响本地状态
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if !m.loggedIn {
		m.mu.Unlock()
		return nil
	}
	identity := m.identity
	m.identity = ""
	m.loggedIn = false
	m.mu.Unlock()

	if _, err := m.requester.Do(ctx, proto.ActionLogout, proto.UserPayload{Username: identity}); err != nil {
		m.logger.Warn("Logout request failed", "identity", identity, "error", err)
		return err
	}

	m.logger.Info("Logged out", "identity", identity)
	return nil
}

// Require 未登录时返回 ErrNotLoggedIn
func (m *Manager) Require() error {
	if !m.LoggedIn() {
		return apperrors.ErrNotLoggedIn
	}
	return nil
}

// Identity 当前登录的用户名，未登录时为空
func (m *Manager) Identity() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// LoggedIn 是否已登录
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loggedIn
}
