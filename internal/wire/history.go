package wire

import (
	"errors"
	"fmt"
	"strings"
)

// 历史记录字段
const (
	KeyType    = "type"
	KeyFrom    = "from"
	KeyTarget  = "target"
	KeyIsGroup = "isGroup"
	KeyMsg     = "msg"
	KeyTS      = "ts"
	KeyFile    = "file"
)

const (
	historySep = ','
	keySep     = ':'
)

var historyKeys = map[string]bool{
	KeyType:    true,
	KeyFrom:    true,
	KeyTarget:  true,
	KeyIsGroup: true,
	KeyMsg:     true,
	KeyTS:      true,
	KeyFile:    true,
}

// historyOrder FormatHistory 的输出顺序，与服务端落盘格式一致
var historyOrder = []string{KeyType, KeyFrom, KeyTarget, KeyIsGroup, KeyMsg, KeyTS, KeyFile}

// ErrMalformedHistory 历史记录缺少必要字段
var ErrMalformedHistory = errors.New("malformed history entry")

// HistoryEntry 一条历史记录
// 格式：{type:text,from:alice,target:bob,isGroup:false,msg:hey,ts:2024-05-01T10:00:00Z}
type HistoryEntry struct {
	Type    string
	From    string
	Target  string
	IsGroup bool
	Msg     string
	TS      string // 服务端时间戳，原样保留，不参与排序
	File    string // 语音消息的文件路径
}

// ParseHistory 解析一条历史记录
// 缺少 from、target 或 msg 时返回 ErrMalformedHistory
//
// 逗号分隔的片段中，只有未出现过的已知字段才开启新字段，
// 其余片段视为上一个字段值的延续（以逗号拼回），因此 msg 中的逗号不会截断消息
func ParseHistory(s string) (HistoryEntry, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		s = s[1 : len(s)-1]
	}

	values := make(map[string]string, len(historyKeys))
	last := ""
	for _, tok := range split(s, historySep, 0) {
		if idx := indexUnescaped(tok, keySep); idx >= 0 {
			key := strings.TrimSpace(unescape(tok[:idx]))
			if _, seen := values[key]; historyKeys[key] && !seen {
				values[key] = unescape(tok[idx+1:])
				last = key
				continue
			}
		}
		if last != "" {
			values[last] += string(historySep) + unescape(tok)
		}
	}

	msg, hasMsg := values[KeyMsg]
	entry := HistoryEntry{
		Type:    strings.TrimSpace(values[KeyType]),
		From:    strings.TrimSpace(values[KeyFrom]),
		Target:  strings.TrimSpace(values[KeyTarget]),
		IsGroup: strings.TrimSpace(values[KeyIsGroup]) == "true",
		Msg:     msg,
		TS:      strings.TrimSpace(values[KeyTS]),
		File:    strings.TrimSpace(values[KeyFile]),
	}

	switch {
	case entry.From == "":
		return entry, fmt.Errorf("%w: missing %s", ErrMalformedHistory, KeyFrom)
	case entry.Target == "":
		return entry, fmt.Errorf("%w: missing %s", ErrMalformedHistory, KeyTarget)
	case !hasMsg || msg == "":
		return entry, fmt.Errorf("%w: missing %s", ErrMalformedHistory, KeyMsg)
	}
	return entry, nil
}

// FormatHistory 编码一条历史记录
// 空字段省略；isGroup 总是输出，msg 在非语音消息中总是输出
func FormatHistory(e HistoryEntry) string {
	// 值只按第一个冒号切分，只需转义逗号
	const specials = string(historySep)

	values := map[string]string{
		KeyType:   e.Type,
		KeyFrom:   e.From,
		KeyTarget: e.Target,
		KeyMsg:    e.Msg,
		KeyTS:     e.TS,
		KeyFile:   e.File,
	}

	var b strings.Builder
	b.WriteByte('{')
	for _, key := range historyOrder {
		var v string
		if key == KeyIsGroup {
			v = "false"
			if e.IsGroup {
				v = "true"
			}
		} else {
			v = values[key]
			if v == "" && (key != KeyMsg || e.File != "") {
				continue
			}
		}
		if b.Len() > 1 {
			b.WriteByte(historySep)
		}
		b.WriteString(key)
		b.WriteByte(keySep)
		b.WriteString(escape(v, specials))
	}
	b.WriteByte('}')
	return b.String()
}
