package store

import (
	"log/slog"
	"sort"
	"sync"

	"sudooom.im.client/internal/model"
)

// Listener 存储变更监听器
// 在成功追加或清空之后、存储锁之外按注册顺序同步调用
type Listener interface {
	OnAppend(key model.ConversationKey, rec model.MessageRecord)
	OnClear(key model.ConversationKey)
}

type dedupKey struct {
	from    string
	content string
}

// conversationLog 单个会话的有序日志
type conversationLog struct {
	records []model.MessageRecord
	seen    map[dedupKey]struct{}
}

// Store 会话存储
// 每个会话内 (From, Content) 唯一，记录按到达顺序排列
type Store struct {
	mu        sync.RWMutex
	logs      map[model.ConversationKey]*conversationLog
	listeners []Listener
	logger    *slog.Logger
}

// New 创建空存储
func New() *Store {
	return &Store{
		logs:   make(map[model.ConversationKey]*conversationLog),
		logger: slog.Default(),
	}
}

// Subscribe 注册监听器
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Append 追加记录；会话中已有相同 (From, Content) 时不追加并返回 false
func (s *Store) Append(key model.ConversationKey, rec model.MessageRecord) bool {
	dk := dedupKey{from: rec.From, content: rec.Content}

	s.mu.Lock()
	log, ok := s.logs[key]
	if !ok {
		log = &conversationLog{seen: make(map[dedupKey]struct{})}
		s.logs[key] = log
	}
	if _, dup := log.seen[dk]; dup {
		s.mu.Unlock()
		return false
	}
	log.seen[dk] = struct{}{}
	log.records = append(log.records, rec)
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		s.notify(func() { l.OnAppend(key, rec) })
	}
	return true
}

// Get 返回会话日志的副本，未见过的会话返回空切片
func (s *Store) Get(key model.ConversationKey) []model.MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[key]
	if !ok {
		return []model.MessageRecord{}
	}
	out := make([]model.MessageRecord, len(log.records))
	copy(out, log.records)
	return out
}

// Len 会话中的记录数
func (s *Store) Len(key model.ConversationKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if log, ok := s.logs[key]; ok {
		return len(log.records)
	}
	return 0
}

// Keys 所有会话，按字符串形式排序
func (s *Store) Keys() []model.ConversationKey {
	s.mu.RLock()
	keys := make([]model.ConversationKey, 0, len(s.logs))
	for k := range s.logs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Clear 清空会话日志（包括去重集合）
func (s *Store) Clear(key model.ConversationKey) {
	s.mu.Lock()
	delete(s.logs, key)
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		s.notify(func() { l.OnClear(key) })
	}
}

// notify 调用监听器，监听器 panic 不影响存储
func (s *Store) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Store listener panic", "panic", r)
		}
	}()
	fn()
}
