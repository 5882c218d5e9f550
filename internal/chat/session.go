package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/metrics"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/poller"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/reconcile"
	"sudooom.im.client/internal/session"
	"sudooom.im.client/internal/snowflake"
	"sudooom.im.client/internal/store"
	"sudooom.im.client/internal/transport"
)

// Options 会话参数
type Options struct {
	Identity     string
	UDPPort      int
	PollInterval time.Duration
	Node         *snowflake.Node // 为空时记录不分配本地 ID
}

// Session 单个用户的会话上下文
// 持有会话管理、存储、历史同步和轮询器，启动顺序为 登录 -> 历史同步 -> 轮询
type Session struct {
	requester  transport.Requester
	manager    *session.Manager
	store      *store.Store
	stamper    *model.Stamper
	reconciler *reconcile.Reconciler
	poller     *poller.Poller
	opts       Options

	mu     sync.RWMutex
	warm   bool
	closed bool

	logger *slog.Logger
}

// New 创建会话
func New(requester transport.Requester, opts Options) *Session {
	opts.Identity = strings.TrimSpace(opts.Identity)

	st := store.New()
	stamper := model.NewStamper(opts.Node)

	return &Session{
		requester:  requester,
		manager:    session.NewManager(requester),
		store:      st,
		stamper:    stamper,
		reconciler: reconcile.New(requester, st, stamper, opts.Identity),
		poller:     poller.New(requester, st, stamper, opts.Identity, opts.PollInterval),
		opts:       opts,
		logger:     slog.Default(),
	}
}

// Start 登录、回放历史并启动轮询
// 登录失败直接返回；历史同步失败只记录日志，此时 Warm 为 false
func (s *Session) Start(ctx context.Context) error {
	if s.isClosed() {
		return apperrors.ErrNotLoggedIn.WithMessage("session closed")
	}

	if err := s.manager.Login(ctx, s.opts.Identity, s.opts.UDPPort); err != nil {
		return err
	}
	// Close 可能在登录请求期间执行，此时由 Start 负责登出
	if s.isClosed() {
		if err := s.manager.Logout(ctx); err != nil {
			s.logger.Warn("Logout after concurrent close failed", "identity", s.opts.Identity, "error", err)
		}
		return apperrors.ErrNotLoggedIn.WithMessage("session closed")
	}

	res, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Warn("History reconciliation failed, continuing with polling only",
			"identity", s.opts.Identity, "error", err)
	} else {
		s.mu.Lock()
		s.warm = true
		s.mu.Unlock()
		s.logger.Debug("Store is warm", "identity", s.opts.Identity, "applied", res.Applied)
	}

	return s.poller.Start()
}

// Close 停止轮询并登出，可重复调用
// ctx 同时限制等待在途轮询和登出请求；等待超时后仍会清理本地登录状态
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	stopErr := s.poller.Stop(ctx)
	return errors.Join(stopErr, s.manager.Logout(ctx))
}

// Identity 当前用户名
func (s *Session) Identity() string {
	return s.opts.Identity
}

// Store 会话存储，只读使用
func (s *Session) Store() *store.Store {
	return s.store
}

// Poller 轮询器
func (s *Session) Poller() *poller.Poller {
	return s.poller
}

// LoggedIn 是否已登录且未关闭
func (s *Session) LoggedIn() bool {
	return !s.isClosed() && s.manager.LoggedIn()
}

// Warm 历史是否已成功回放
func (s *Session) Warm() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warm
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// require 所有业务操作的前置检查
func (s *Session) require() error {
	if s.isClosed() {
		return apperrors.ErrNotLoggedIn
	}
	return s.manager.Require()
}

// ============== 发送 ==============

// SendDirect 发送私聊消息，成功后追加到本地会话
func (s *Session) SendDirect(ctx context.Context, to, content string) (model.MessageRecord, error) {
	if err := s.require(); err != nil {
		return model.MessageRecord{}, err
	}
	if to == "" {
		return model.MessageRecord{}, apperrors.ErrInvalidParams.WithMessage("recipient is required")
	}

	_, err := s.requester.Do(ctx, proto.ActionSendMessageUser, proto.DirectMessagePayload{
		From:    s.opts.Identity,
		To:      to,
		Content: content,
	})
	if err != nil {
		return model.MessageRecord{}, err
	}

	return s.appendSent(model.Direct(to), content), nil
}

// SendGroup 发送群消息，成功后追加到本地会话
func (s *Session) SendGroup(ctx context.Context, group, content string) (model.MessageRecord, error) {
	if err := s.require(); err != nil {
		return model.MessageRecord{}, err
	}
	if group == "" {
		return model.MessageRecord{}, apperrors.ErrInvalidParams.WithMessage("group is required")
	}

	_, err := s.requester.Do(ctx, proto.ActionSendMessageGroup, proto.GroupMessagePayload{
		From:      s.opts.Identity,
		GroupName: group,
		Content:   content,
	})
	if err != nil {
		return model.MessageRecord{}, err
	}

	return s.appendSent(model.Group(group), content), nil
}

func (s *Session) appendSent(key model.ConversationKey, content string) model.MessageRecord {
	rec := s.stamper.Record(s.opts.Identity, content, model.Sent)
	inserted := s.store.Append(key, rec)
	metrics.RecordInsert(metrics.SourceSend, inserted)
	return rec
}

// ============== 用户与群组 ==============

// OnlineUsers 在线用户列表
func (s *Session) OnlineUsers(ctx context.Context) ([]string, error) {
	if err := s.require(); err != nil {
		return nil, err
	}
	var users []string
	if err := s.query(ctx, proto.ActionGetOnlineUsers, proto.Empty{}, proto.FieldUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AllUsers 全部用户及在线状态
func (s *Session) AllUsers(ctx context.Context) (map[string]bool, error) {
	if err := s.require(); err != nil {
		return nil, err
	}
	var users map[string]bool
	if err := s.query(ctx, proto.ActionGetAllUsers, proto.Empty{}, proto.FieldUsers, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]bool{}
	}
	return users, nil
}

// Groups 全部群组
func (s *Session) Groups(ctx context.Context) ([]string, error) {
	if err := s.require(); err != nil {
		return nil, err
	}
	var groups []string
	if err := s.query(ctx, proto.ActionGetGroups, proto.Empty{}, proto.FieldGroups, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// UserGroups 当前用户所在的群组
func (s *Session) UserGroups(ctx context.Context) ([]string, error) {
	if err := s.require(); err != nil {
		return nil, err
	}
	var groups []string
	payload := proto.UserPayload{Username: s.opts.Identity}
	if err := s.query(ctx, proto.ActionGetUserGroups, payload, proto.FieldGroups, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup 以当前用户为创建者建群
func (s *Session) CreateGroup(ctx context.Context, group string) error {
	if err := s.require(); err != nil {
		return err
	}
	if group == "" {
		return apperrors.ErrInvalidParams.WithMessage("group is required")
	}
	return s.exec(ctx, proto.ActionCreateGroup, proto.CreateGroupPayload{
		GroupName: group,
		Creator:   s.opts.Identity,
	})
}

// AddToGroup 把用户加入群组
func (s *Session) AddToGroup(ctx context.Context, group, username string) error {
	if err := s.require(); err != nil {
		return err
	}
	if group == "" || username == "" {
		return apperrors.ErrInvalidParams.WithMessage("group and username are required")
	}
	return s.exec(ctx, proto.ActionAddToGroup, proto.GroupMemberPayload{
		GroupName: group,
		Username:  username,
	})
}

// DeleteUser 删除用户
func (s *Session) DeleteUser(ctx context.Context, username string) error {
	if err := s.require(); err != nil {
		return err
	}
	if username == "" {
		return apperrors.ErrInvalidParams.WithMessage("username is required")
	}
	return s.exec(ctx, proto.ActionDeleteUser, proto.UserPayload{Username: username})
}

// CleanupInvalidUsers 清理无效用户
func (s *Session) CleanupInvalidUsers(ctx context.Context) error {
	if err := s.require(); err != nil {
		return err
	}
	return s.exec(ctx, proto.ActionCleanupInvalidUsers, proto.Empty{})
}

// ClearHistory 清空与 other 的私聊记录（服务端与本地）
func (s *Session) ClearHistory(ctx context.Context, other string) error {
	if err := s.require(); err != nil {
		return err
	}
	if other == "" {
		return apperrors.ErrInvalidParams.WithMessage("peer is required")
	}
	err := s.exec(ctx, proto.ActionClearChatHistory, proto.ClearHistoryPayload{
		User1: s.opts.Identity,
		User2: other,
	})
	if err != nil {
		return err
	}

	s.store.Clear(model.Direct(other))
	s.logger.Info("Chat history cleared", "identity", s.opts.Identity, "peer", other)
	return nil
}

// exec 只关心成败的请求，调用方负责登录检查
func (s *Session) exec(ctx context.Context, action proto.Action, payload any) error {
	_, err := s.requester.Do(ctx, action, payload)
	return err
}

// query 请求并解析指定字段，字段缺失时 v 保持零值
func (s *Session) query(ctx context.Context, action proto.Action, payload any, field string, v any) error {
	resp, err := s.requester.Do(ctx, action, payload)
	if err != nil {
		return err
	}
	if _, err := resp.Field(field, v); err != nil {
		return apperrors.ErrProtocol.Wrap(err)
	}
	return nil
}
