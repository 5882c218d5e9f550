package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.client/pkg/response"
)

// CreateGroupRequest 建群请求
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddMemberRequest 加群请求
type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
}

// DirectoryHandler 用户与群组处理器
type DirectoryHandler struct {
	chat Chat
}

// NewDirectoryHandler 创建用户与群组处理器
func NewDirectoryHandler(chat Chat) *DirectoryHandler {
	return &DirectoryHandler{chat: chat}
}

// GetUsers 获取全部用户及在线状态
// GET /api/v1/users
func (h *DirectoryHandler) GetUsers(c *gin.Context) {
	users, err := h.chat.AllUsers(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"users": users})
}

// GetOnlineUsers 获取在线用户
// GET /api/v1/users/online
func (h *DirectoryHandler) GetOnlineUsers(c *gin.Context) {
	users, err := h.chat.OnlineUsers(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"list": nonNil(users)})
}

// GetGroups 获取全部群组
// GET /api/v1/groups
func (h *DirectoryHandler) GetGroups(c *gin.Context) {
	groups, err := h.chat.Groups(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"list": nonNil(groups)})
}

// GetMyGroups 获取当前用户所在群组
// GET /api/v1/groups/mine
func (h *DirectoryHandler) GetMyGroups(c *gin.Context) {
	groups, err := h.chat.UserGroups(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"list": nonNil(groups)})
}

// CreateGroup 建群
// POST /api/v1/groups
func (h *DirectoryHandler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	if err := h.chat.CreateGroup(c.Request.Context(), req.Name); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

// AddMember 把用户加入群组
// POST /api/v1/groups/:name/members
func (h *DirectoryHandler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	if err := h.chat.AddToGroup(c.Request.Context(), c.Param("name"), req.Username); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
