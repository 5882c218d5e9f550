package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/store"
	"sudooom.im.client/pkg/response"
)

// Chat 会话能力，*chat.Session 实现了该接口
type Chat interface {
	Identity() string
	Store() *store.Store
	SendDirect(ctx context.Context, to, content string) (model.MessageRecord, error)
	SendGroup(ctx context.Context, group, content string) (model.MessageRecord, error)
	ClearHistory(ctx context.Context, other string) error
	OnlineUsers(ctx context.Context) ([]string, error)
	AllUsers(ctx context.Context) (map[string]bool, error)
	Groups(ctx context.Context) ([]string, error)
	UserGroups(ctx context.Context) ([]string, error)
	CreateGroup(ctx context.Context, group string) error
	AddToGroup(ctx context.Context, group, username string) error
}

// ConversationHandler 会话处理器
type ConversationHandler struct {
	chat Chat
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(chat Chat) *ConversationHandler {
	return &ConversationHandler{chat: chat}
}

// ListConversations 获取会话列表
// GET /api/v1/conversations
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	st := h.chat.Store()

	result := make([]gin.H, 0)
	for _, key := range st.Keys() {
		records := st.Get(key)
		if len(records) == 0 {
			continue
		}
		result = append(result, gin.H{
			"key":   key.String(),
			"kind":  key.Kind,
			"name":  key.Name,
			"count": len(records),
			"last":  records[len(records)-1],
		})
	}

	response.Success(c, gin.H{
		"identity": h.chat.Identity(),
		"list":     result,
	})
}

// GetConversation 获取会话消息
// GET /api/v1/conversations/:kind/:name?limit=N
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	key, err := model.NewKey(normalizeKind(c.Param("kind")), c.Param("name"))
	if err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.ErrorWithMsg(c, response.CodeInvalidParams, "limit must be a positive integer")
			return
		}
	}

	records := h.chat.Store().Get(key)
	if len(records) == 0 {
		response.Error(c, response.CodeNotFound)
		return
	}
	total := len(records)
	if limit > 0 && limit < total {
		records = records[total-limit:]
	}

	response.Success(c, gin.H{
		"key":      key.String(),
		"total":    total,
		"messages": records,
	})
}

// ClearConversation 清空私聊记录（服务端与本地）
// DELETE /api/v1/conversations/direct/:name
func (h *ConversationHandler) ClearConversation(c *gin.Context) {
	name := c.Param("name")

	if err := h.chat.ClearHistory(c.Request.Context(), name); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// normalizeKind direct 是 user 的别名
func normalizeKind(kind string) string {
	if kind == "direct" {
		return string(model.KindDirect)
	}
	return kind
}
