package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/snowflake"
)

const insertQuery = `
	INSERT INTO client_messages (id, identity, conv_key, from_user, content, direction, server_ts, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

// BatchSender 批量执行，*pgxpool.Pool 实现了该接口
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config 批量写入配置
type Config struct {
	BatchSize     int           // 批量大小阈值
	FlushInterval time.Duration // 强制刷新间隔
}

// entry 待归档的记录
type entry struct {
	key model.ConversationKey
	rec model.MessageRecord
}

// Batcher 把会话存储中新增的记录批量写入 PostgreSQL
// 实现 store.Listener；清空会话不删除归档
type Batcher struct {
	db       BatchSender
	sf       *snowflake.Node
	identity string
	config   Config
	queue    chan entry
	logger   *slog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewBatcher 创建批量写入器
// sf 为没有本地 ID 的记录补发 ID，可以为空
func NewBatcher(db BatchSender, sf *snowflake.Node, identity string, config Config) *Batcher {
	// 设置默认值
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	return &Batcher{
		db:       db,
		sf:       sf,
		identity: identity,
		config:   config,
		queue:    make(chan entry, config.BatchSize*10),
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
}

// Start 启动后台写入协程
func (b *Batcher) Start() {
	b.wg.Add(1)
	go b.worker()
	b.logger.Info("Archive batcher started",
		"batchSize", b.config.BatchSize,
		"flushInterval", b.config.FlushInterval,
	)
}

// Stop 刷入剩余记录后停止，可重复调用
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		b.logger.Info("Archive batcher stopped")
	})
}

// OnAppend 入队；队列满时等待，停止后丢弃
func (b *Batcher) OnAppend(key model.ConversationKey, rec model.MessageRecord) {
	if rec.ID == 0 && b.sf != nil {
		rec.ID = b.sf.Generate()
	}
	e := entry{key: key, rec: rec}

	select {
	case b.queue <- e:
		return
	case <-b.stopChan:
		return
	default:
	}

	b.logger.Warn("Archive queue full, waiting...")
	select {
	case b.queue <- e:
	case <-b.stopChan:
		b.logger.Warn("Archive batcher stopped, record dropped", "key", key.String())
	}
}

// OnClear 归档保留，不做处理
func (b *Batcher) OnClear(model.ConversationKey) {}

// QueueSize 当前队列长度（用于监控）
func (b *Batcher) QueueSize() int {
	return len(b.queue)
}

// worker 后台工作协程
func (b *Batcher) worker() {
	defer b.wg.Done()

	batch := make([]entry, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			// 停止信号，刷入队列中剩余的记录
		drain:
			for {
				select {
				case e := <-b.queue:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				b.flush(context.Background(), batch)
			}
			return

		case e := <-b.queue:
			batch = append(batch, e)
			// 达到批量大小阈值，立即刷入
			if len(batch) >= b.config.BatchSize {
				b.flush(context.Background(), batch)
				batch = make([]entry, 0, b.config.BatchSize)
			}

		case <-ticker.C:
			// 定时刷入（即使未满也写入）
			if len(batch) > 0 {
				b.flush(context.Background(), batch)
				batch = make([]entry, 0, b.config.BatchSize)
			}
		}
	}
}

// flush 批量写入数据库
func (b *Batcher) flush(ctx context.Context, batch []entry) {
	startTime := time.Now()

	pgBatch := &pgx.Batch{}
	for _, e := range batch {
		var serverTS *string
		if e.rec.ServerTS != "" {
			ts := e.rec.ServerTS
			serverTS = &ts
		}
		pgBatch.Queue(insertQuery,
			e.rec.ID.Int64(),
			b.identity,
			e.key.String(),
			e.rec.From,
			e.rec.Content,
			string(e.rec.Direction),
			serverTS,
			e.rec.ReceivedAt,
		)
	}

	br := b.db.SendBatch(ctx, pgBatch)
	defer func() {
		if err := br.Close(); err != nil {
			b.logger.Error("Failed to close batch results", "error", err)
		}
	}()

	failed := 0
	for i := range batch {
		if _, err := br.Exec(); err != nil {
			failed++
			b.logger.Error("Failed to archive record",
				"id", batch[i].rec.ID.String(),
				"key", batch[i].key.String(),
				"error", err,
			)
		}
	}

	elapsed := time.Since(startTime)
	if failed > 0 {
		b.logger.Error("Archive flush completed with errors",
			"count", len(batch),
			"failed", failed,
			"elapsed", elapsed,
		)
	} else {
		b.logger.Debug("Archive flush completed",
			"count", len(batch),
			"elapsed", elapsed,
		)
	}
}
