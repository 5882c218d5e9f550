package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePending(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Pending
	}{
		{"direct", "MSG|bob|hello", Pending{From: "bob", Content: "hello"}},
		{"group", "GROUP|team|carol|hi", Pending{Group: "team", From: "carol", Content: "hi"}},
		{"empty content", "MSG|bob|", Pending{From: "bob", Content: ""}},
		{"unescaped pipe kept in content", "MSG|bob|a|b|c", Pending{From: "bob", Content: "a|b|c"}},
		{"group unescaped pipe", "GROUP|team|carol|x|y", Pending{Group: "team", From: "carol", Content: "x|y"}},
		{"escaped pipe in from", `MSG|b\|ob|hi`, Pending{From: "b|ob", Content: "hi"}},
		{"escaped backslash", `MSG|bob|c:\\tmp`, Pending{From: "bob", Content: `c:\tmp`}},
		{"escaped pipe in group", `GROUP|a\|b|carol|hi`, Pending{Group: "a|b", From: "carol", Content: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePending(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePending_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"tag only", "MSG"},
		{"missing content", "MSG|bob"},
		{"empty from", "MSG||hello"},
		{"group missing content", "GROUP|team|carol"},
		{"group empty name", "GROUP||carol|hi"},
		{"group empty from", "GROUP|team||hi"},
		{"unknown tag", "PING|bob|hi"},
		{"lowercase tag", "msg|bob|hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePending(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPending))
		})
	}
}

func TestFormatPending(t *testing.T) {
	assert.Equal(t, "MSG|bob|hello", FormatPending(Pending{From: "bob", Content: "hello"}))
	assert.Equal(t, "GROUP|team|carol|hi", FormatPending(Pending{Group: "team", From: "carol", Content: "hi"}))
	assert.Equal(t, `MSG|b\|ob|a\|b\\c`, FormatPending(Pending{From: "b|ob", Content: `a|b\c`}))

	// 编码后能原样解回
	for _, p := range []Pending{
		{From: "bob", Content: "pipes | everywhere |"},
		{Group: "x|y", From: `back\slash`, Content: `\|\`},
	} {
		got, err := DecodePending(FormatPending(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestParseHistory(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want HistoryEntry
	}{
		{
			name: "server record",
			in:   "{type:text,from:alice,target:bob,isGroup:false,msg:hey,ts:2024-05-01T10:00:00.123Z}",
			want: HistoryEntry{Type: "text", From: "alice", Target: "bob", Msg: "hey", TS: "2024-05-01T10:00:00.123Z"},
		},
		{
			name: "no braces",
			in:   "from:alice,target:bob,isGroup:false,msg:hey",
			want: HistoryEntry{From: "alice", Target: "bob", Msg: "hey"},
		},
		{
			name: "group",
			in:   "{type:text,from:carol,target:team,isGroup:true,msg:hi}",
			want: HistoryEntry{Type: "text", From: "carol", Target: "team", IsGroup: true, Msg: "hi"},
		},
		{
			name: "absent isGroup is false",
			in:   "from:bob,target:alice,msg:yo",
			want: HistoryEntry{From: "bob", Target: "alice", Msg: "yo"},
		},
		{
			name: "isGroup only literal true",
			in:   "from:bob,target:team,isGroup:TRUE,msg:yo",
			want: HistoryEntry{From: "bob", Target: "team", Msg: "yo"},
		},
		{
			name: "comma inside msg",
			in:   "{from:alice,target:bob,isGroup:false,msg:hello, world,ts:2024-05-01T10:00:00Z}",
			want: HistoryEntry{From: "alice", Target: "bob", Msg: "hello, world", TS: "2024-05-01T10:00:00Z"},
		},
		{
			name: "repeated key inside msg",
			in:   "from:alice,target:bob,msg:see,from:carol",
			want: HistoryEntry{From: "alice", Target: "bob", Msg: "see,from:carol"},
		},
		{
			name: "colon inside msg",
			in:   "from:alice,target:bob,msg:time: 10:00",
			want: HistoryEntry{From: "alice", Target: "bob", Msg: "time: 10:00"},
		},
		{
			name: "escaped comma",
			in:   `from:alice,target:bob,msg:a\,ts:b`,
			want: HistoryEntry{From: "alice", Target: "bob", Msg: "a,ts:b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHistory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHistory_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing msg", "{type:text,from:alice,target:bob,isGroup:false,ts:2024-05-01T10:00:00Z}"},
		{"empty msg", "{type:text,from:bob,target:alice,isGroup:false,msg:,ts:x}"},
		{"missing from", "target:bob,msg:hey"},
		{"missing target", "from:alice,msg:hey"},
		{"voice note", "{type:voice_note,from:alice,target:bob,isGroup:false,file:/data/a.wav,ts:x}"},
		{"garbage", "not a record"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHistory(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedHistory))
		})
	}
}

func TestFormatHistory(t *testing.T) {
	e := HistoryEntry{Type: "text", From: "alice", Target: "bob", Msg: "hey", TS: "2024-05-01T10:00:00Z"}
	assert.Equal(t, "{type:text,from:alice,target:bob,isGroup:false,msg:hey,ts:2024-05-01T10:00:00Z}", FormatHistory(e))

	voice := HistoryEntry{Type: "voice_note", From: "alice", Target: "team", IsGroup: true, File: "/data/a.wav"}
	assert.Equal(t, "{type:voice_note,from:alice,target:team,isGroup:true,file:/data/a.wav}", FormatHistory(voice))

	// 编码后能原样解回
	for _, e := range []HistoryEntry{
		{From: "alice", Target: "bob", Msg: "a,b,c"},
		{From: "alice", Target: "team", IsGroup: true, Msg: `x\,ts:y`, TS: "t"},
		{From: "a,b", Target: "c", Msg: " "},
	} {
		got, err := ParseHistory(FormatHistory(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}
