package wire

import (
	"errors"
	"fmt"
	"strings"
)

// 待收消息标签
const (
	TagDirect = "MSG"
	TagGroup  = "GROUP"
)

const pendingSep = '|'

// ErrMalformedPending 待收消息无法解码
var ErrMalformedPending = errors.New("malformed pending message")

// Pending 一条待收消息
// 私聊：MSG|<from>|<content>
// 群聊：GROUP|<group>|<from>|<content>
// 字段内的 | 和 \ 用 \ 转义；最后一个字段吸收其后所有未转义的 |
type Pending struct {
	Group   string // 群聊时非空
	From    string
	Content string
}

// IsGroup 是否群消息
func (p Pending) IsGroup() bool {
	return p.Group != ""
}

// DecodePending 解码一条待收消息
func DecodePending(s string) (Pending, error) {
	head := split(s, pendingSep, 2)
	if len(head) < 2 {
		return Pending{}, fmt.Errorf("%w: %q", ErrMalformedPending, s)
	}

	switch head[0] {
	case TagDirect:
		fields := split(head[1], pendingSep, 2)
		if len(fields) < 2 || fields[0] == "" {
			return Pending{}, fmt.Errorf("%w: %q", ErrMalformedPending, s)
		}
		return Pending{
			From:    unescape(fields[0]),
			Content: unescape(fields[1]),
		}, nil

	case TagGroup:
		fields := split(head[1], pendingSep, 3)
		if len(fields) < 3 || fields[0] == "" || fields[1] == "" {
			return Pending{}, fmt.Errorf("%w: %q", ErrMalformedPending, s)
		}
		return Pending{
			Group:   unescape(fields[0]),
			From:    unescape(fields[1]),
			Content: unescape(fields[2]),
		}, nil

	default:
		return Pending{}, fmt.Errorf("%w: unknown tag %q", ErrMalformedPending, head[0])
	}
}

// FormatPending 编码一条待收消息
func FormatPending(p Pending) string {
	const specials = string(pendingSep)

	var b strings.Builder
	if p.IsGroup() {
		b.WriteString(TagGroup)
		b.WriteByte(pendingSep)
		b.WriteString(escape(p.Group, specials))
	} else {
		b.WriteString(TagDirect)
	}
	b.WriteByte(pendingSep)
	b.WriteString(escape(p.From, specials))
	b.WriteByte(pendingSep)
	b.WriteString(escape(p.Content, specials))
	return b.String()
}
