package model

import (
	"fmt"
	"strings"
	"time"

	"sudooom.im.client/internal/snowflake"
)

// Kind 会话类型
type Kind string

const (
	KindDirect Kind = "user"  // 私聊
	KindGroup  Kind = "group" // 群聊
)

// ConversationKey 会话标识
// 私聊以对方用户名标识，群聊以群名标识
type ConversationKey struct {
	Kind Kind
	Name string
}

// Direct 私聊会话
func Direct(other string) ConversationKey {
	return ConversationKey{Kind: KindDirect, Name: other}
}

// Group 群聊会话
func Group(name string) ConversationKey {
	return ConversationKey{Kind: KindGroup, Name: name}
}

// IsGroup 是否群聊
func (k ConversationKey) IsGroup() bool {
	return k.Kind == KindGroup
}

// String 形如 user_bob / group_team
func (k ConversationKey) String() string {
	return string(k.Kind) + "_" + k.Name
}

// MarshalText 以 String 形式序列化
func (k ConversationKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 从 String 形式解析
func (k *ConversationKey) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey 解析 user_<name> / group_<name>
func ParseKey(s string) (ConversationKey, error) {
	kind, name, ok := strings.Cut(s, "_")
	if !ok || name == "" {
		return ConversationKey{}, fmt.Errorf("invalid conversation key %q", s)
	}
	return NewKey(kind, name)
}

// NewKey 按类型名创建会话标识
func NewKey(kind, name string) (ConversationKey, error) {
	if name == "" {
		return ConversationKey{}, fmt.Errorf("empty conversation name")
	}
	switch Kind(kind) {
	case KindDirect:
		return Direct(name), nil
	case KindGroup:
		return Group(name), nil
	default:
		return ConversationKey{}, fmt.Errorf("unknown conversation kind %q", kind)
	}
}

// Direction 消息方向
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// DirectionOf 本人发出的消息为 Sent，否则为 Received
func DirectionOf(from, identity string) Direction {
	if from == identity {
		return Sent
	}
	return Received
}

// MessageRecord 会话中的一条消息
// 写入后不再修改；去重只比较 From 和 Content
type MessageRecord struct {
	ID         snowflake.ID `json:"id,string"`
	From       string       `json:"from"`
	Content    string       `json:"content"`
	Direction  Direction    `json:"direction"`
	ReceivedAt time.Time    `json:"receivedAt"`        // 本地接收时间
	ServerTS   string       `json:"serverTs,omitempty"` // 历史记录中的服务端时间戳，原样保留
}

// SameMessage 是否为同一条消息（按 From + Content 去重）
func (r MessageRecord) SameMessage(other MessageRecord) bool {
	return r.From == other.From && r.Content == other.Content
}
