package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/model"
)

// opTimeout 单次镜像写入的超时，避免拖慢轮询
const opTimeout = 2 * time.Second

// BuildConversationKey 会话日志 Key: im:client:{identity}:conv:{user_bob|group_team}
func BuildConversationKey(identity string, key model.ConversationKey) string {
	return fmt.Sprintf("im:client:%s:conv:%s", identity, key)
}

// BuildConversationIndexKey 会话索引 Key（ZSET，score 为最近一条消息的接收时间）
func BuildConversationIndexKey(identity string) string {
	return fmt.Sprintf("im:client:%s:conv:index", identity)
}

// NewClient 创建 Redis 客户端并检查连通性
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return client, nil
}

// Mirror 把会话存储镜像到 Redis，供其他进程读取
// 实现 store.Listener，写入失败只记录日志
type Mirror struct {
	client   *redis.Client
	identity string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewMirror 创建镜像，ttl <= 0 表示不过期
func NewMirror(client *redis.Client, identity string, ttl time.Duration) *Mirror {
	return &Mirror{
		client:   client,
		identity: identity,
		ttl:      ttl,
		logger:   slog.Default(),
	}
}

// OnAppend 追加记录并更新会话索引
func (m *Mirror) OnAppend(key model.ConversationKey, rec model.MessageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := m.Append(ctx, key, rec); err != nil {
		m.logger.Error("Failed to mirror record", "identity", m.identity, "key", key.String(), "error", err)
	}
}

// OnClear 删除会话日志及索引项
func (m *Mirror) OnClear(key model.ConversationKey) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := m.Clear(ctx, key); err != nil {
		m.logger.Error("Failed to clear mirrored conversation", "identity", m.identity, "key", key.String(), "error", err)
	}
}

// Append 追加一条记录
func (m *Mirror) Append(ctx context.Context, key model.ConversationKey, rec model.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	convKey := BuildConversationKey(m.identity, key)
	idxKey := BuildConversationIndexKey(m.identity)

	pipe := m.client.Pipeline()
	pipe.RPush(ctx, convKey, data)
	pipe.ZAdd(ctx, idxKey, redis.Z{Score: float64(rec.ReceivedAt.UnixMilli()), Member: key.String()})
	if m.ttl > 0 {
		pipe.Expire(ctx, convKey, m.ttl)
		pipe.Expire(ctx, idxKey, m.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Clear 删除一个会话
func (m *Mirror) Clear(ctx context.Context, key model.ConversationKey) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, BuildConversationKey(m.identity, key))
	pipe.ZRem(ctx, BuildConversationIndexKey(m.identity), key.String())
	_, err := pipe.Exec(ctx)
	return err
}

// Load 读取镜像的会话日志
func (m *Mirror) Load(ctx context.Context, key model.ConversationKey) ([]model.MessageRecord, error) {
	items, err := m.client.LRange(ctx, BuildConversationKey(m.identity, key), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.MessageRecord, 0, len(items))
	for _, item := range items {
		var rec model.MessageRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			m.logger.Warn("Skipping undecodable mirrored record", "key", key.String(), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Conversations 按最近活跃时间倒序返回会话
func (m *Mirror) Conversations(ctx context.Context) ([]model.ConversationKey, error) {
	members, err := m.client.ZRevRange(ctx, BuildConversationIndexKey(m.identity), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	keys := make([]model.ConversationKey, 0, len(members))
	for _, member := range members {
		key, err := model.ParseKey(member)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
