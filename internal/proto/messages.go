package proto

import (
	"encoding/json"
	"fmt"
)

// Action 后端操作名
type Action string

// ============== 后端操作 ==============

const (
	ActionLogin               Action = "LOGIN"
	ActionLogout              Action = "LOGOUT"
	ActionSendMessageUser     Action = "SEND_MESSAGE_USER"
	ActionSendMessageGroup    Action = "SEND_MESSAGE_GROUP"
	ActionGetOnlineUsers      Action = "GET_ONLINE_USERS"
	ActionGetAllUsers         Action = "GET_ALL_USERS"
	ActionCreateGroup         Action = "CREATE_GROUP"
	ActionAddToGroup          Action = "ADD_TO_GROUP"
	ActionGetHistory          Action = "GET_HISTORY"
	ActionGetGroups           Action = "GET_GROUPS"
	ActionGetUserGroups       Action = "GET_USER_GROUPS"
	ActionGetPendingMessages  Action = "GET_PENDING_MESSAGES"
	ActionClearChatHistory    Action = "CLEAR_CHAT_HISTORY"
	ActionDeleteUser          Action = "DELETE_USER"
	ActionCleanupInvalidUsers Action = "CLEANUP_INVALID_USERS"
)

// Request 请求信封，序列化后以单个换行结尾
type Request struct {
	Action Action `json:"action"`
	Data   any    `json:"data"`
}

// Response 响应信封
// 只有成功标识和 message 是通用字段，其余字段按操作按需解析
type Response struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	fields map[string]json.RawMessage
}

// UnmarshalJSON 保留全部原始字段，供 Field 按需解析
func (r *Response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("response is not an object")
	}

	type plain Response
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Response(p)
	r.fields = fields
	return nil
}

// OK 是否成功
// CLEAR_CHAT_HISTORY 用 status:"OK" 表示成功，其余操作用 success:true
func (r *Response) OK() bool {
	return r.Success || r.Status == "OK"
}

// Has 是否包含指定字段（且不为 null）
func (r *Response) Has(name string) bool {
	raw, ok := r.fields[name]
	return ok && string(raw) != "null"
}

// Field 解析指定字段，字段不存在或为 null 时返回 false
func (r *Response) Field(name string, v any) (bool, error) {
	if !r.Has(name) {
		return false, nil
	}
	if err := json.Unmarshal(r.fields[name], v); err != nil {
		return true, fmt.Errorf("decode field %q: %w", name, err)
	}
	return true, nil
}

// ============== 请求载荷 ==============

// LoginPayload LOGIN
type LoginPayload struct {
	Username string `json:"username"`
	UDPPort  int    `json:"udpPort"`
}

// UserPayload 仅携带用户名的请求（LOGOUT、GET_HISTORY、GET_PENDING_MESSAGES 等）
type UserPayload struct {
	Username string `json:"username"`
}

// DirectMessagePayload SEND_MESSAGE_USER
type DirectMessagePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// GroupMessagePayload SEND_MESSAGE_GROUP
type GroupMessagePayload struct {
	From      string `json:"from"`
	GroupName string `json:"groupName"`
	Content   string `json:"content"`
}

// CreateGroupPayload CREATE_GROUP
type CreateGroupPayload struct {
	GroupName string `json:"groupName"`
	Creator   string `json:"creator"`
}

// GroupMemberPayload ADD_TO_GROUP
type GroupMemberPayload struct {
	GroupName string `json:"groupName"`
	Username  string `json:"username"`
}

// ClearHistoryPayload CLEAR_CHAT_HISTORY
type ClearHistoryPayload struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// Empty 无参数请求
type Empty struct{}

// ============== 响应字段名 ==============

const (
	FieldMessages = "messages" // GET_PENDING_MESSAGES
	FieldHistory  = "history"  // GET_HISTORY
	FieldUsers    = "users"    // GET_ONLINE_USERS（数组）/ GET_ALL_USERS（对象）
	FieldGroups   = "groups"   // GET_GROUPS / GET_USER_GROUPS
)
