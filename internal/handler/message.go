package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.client/internal/model"
	"sudooom.im.client/pkg/response"
)

// SendMessageRequest 发送消息请求，To 与 Group 二选一
type SendMessageRequest struct {
	To      string `json:"to"`
	Group   string `json:"group"`
	Content string `json:"content" binding:"required"`
}

// MessageHandler 消息处理器
type MessageHandler struct {
	chat Chat
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(chat Chat) *MessageHandler {
	return &MessageHandler{chat: chat}
}

// SendMessage 发送私聊或群聊消息
// POST /api/v1/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}
	if (req.To == "") == (req.Group == "") {
		response.ErrorWithMsg(c, response.CodeInvalidParams, "exactly one of to and group is required")
		return
	}

	var (
		key model.ConversationKey
		rec model.MessageRecord
		err error
	)
	if req.Group != "" {
		key = model.Group(req.Group)
		rec, err = h.chat.SendGroup(c.Request.Context(), req.Group, req.Content)
	} else {
		key = model.Direct(req.To)
		rec, err = h.chat.SendDirect(c.Request.Context(), req.To, req.Content)
	}
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"key":     key.String(),
		"message": rec,
	})
}
