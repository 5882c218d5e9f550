package model

import (
	"time"

	"sudooom.im.client/internal/snowflake"
)

// Stamper 为新建记录分配本地 ID 和接收时间
type Stamper struct {
	node *snowflake.Node
	now  func() time.Time
}

// NewStamper 创建 Stamper，node 为 nil 时不分配 ID
func NewStamper(node *snowflake.Node) *Stamper {
	return &Stamper{node: node, now: time.Now}
}

// Record 新建一条记录
func (s *Stamper) Record(from, content string, dir Direction) MessageRecord {
	rec := MessageRecord{
		From:       from,
		Content:    content,
		Direction:  dir,
		ReceivedAt: s.now(),
	}
	if s.node != nil {
		rec.ID = s.node.Generate()
	}
	return rec
}
