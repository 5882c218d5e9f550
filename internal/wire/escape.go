package wire

import "strings"

// escapeChar 转义字符，紧随其后的一个字符按字面处理
const escapeChar = '\\'

// split 按未转义的分隔符切分，最多切成 n 段（n <= 0 表示不限）
// 返回的各段仍保留转义序列，由 unescape 还原
func split(s string, sep byte, n int) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			i++
		case sep:
			if n > 0 && len(parts) == n-1 {
				return append(parts, s[start:])
			}
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// indexUnescaped 第一个未转义的 c 的位置，不存在返回 -1
func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			i++
		case c:
			return i
		}
	}
	return -1
}

// unescape 去掉转义符；末尾孤立的转义符按字面保留
func unescape(s string) string {
	if strings.IndexByte(s, escapeChar) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == escapeChar && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// escape 转义 specials 中的字符以及转义符本身
func escape(s, specials string) string {
	if !strings.ContainsAny(s, specials+string(escapeChar)) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == escapeChar || strings.IndexByte(specials, s[i]) >= 0 {
			b.WriteByte(escapeChar)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
