package reconcile

import (
	"context"
	"log/slog"
	"sync"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/metrics"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/store"
	"sudooom.im.client/internal/transport"
	"sudooom.im.client/internal/wire"
)

// Result 一次历史同步的统计
type Result struct {
	Total      int // 服务端返回的记录数
	Applied    int // 新追加的记录数
	Duplicates int // 已存在而跳过的记录数
	Skipped    int // 无法解析而跳过的记录数
}

// Reconciler 登录后一次性回放服务端历史记录
type Reconciler struct {
	requester transport.Requester
	store     *store.Store
	stamper   *model.Stamper
	identity  string

	mu   sync.Mutex
	done bool

	logger *slog.Logger
}

// New 创建历史同步器
func New(requester transport.Requester, st *store.Store, stamper *model.Stamper, identity string) *Reconciler {
	return &Reconciler{
		requester: requester,
		store:     st,
		stamper:   stamper,
		identity:  identity,
		logger:    slog.Default(),
	}
}

// Reconcile 拉取并回放历史记录，每个会话只执行一次
// 单条记录解析失败只跳过该条；请求失败时返回错误，不允许重试
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return Result{}, apperrors.ErrAlreadyReconciled
	}
	r.done = true

	resp, err := r.requester.Do(ctx, proto.ActionGetHistory, proto.UserPayload{Username: r.identity})
	if err != nil {
		return Result{}, err
	}

	var entries []string
	if _, err := resp.Field(proto.FieldHistory, &entries); err != nil {
		return Result{}, apperrors.ErrProtocol.Wrap(err)
	}

	res := Result{Total: len(entries)}
	for i, raw := range entries {
		entry, err := wire.ParseHistory(raw)
		if err != nil {
			res.Skipped++
			metrics.HistoryEntries.WithLabelValues("skipped").Inc()
			r.logger.Warn("Skipping malformed history entry", "identity", r.identity, "index", i, "error", err)
			continue
		}

		rec := r.stamper.Record(entry.From, entry.Msg, model.DirectionOf(entry.From, r.identity))
		rec.ServerTS = entry.TS

		inserted := r.store.Append(r.keyFor(entry), rec)
		metrics.RecordInsert(metrics.SourceHistory, inserted)
		if inserted {
			res.Applied++
			metrics.HistoryEntries.WithLabelValues("applied").Inc()
		} else {
			res.Duplicates++
			metrics.HistoryEntries.WithLabelValues("duplicate").Inc()
		}
	}

	r.logger.Info("History reconciled",
		"identity", r.identity,
		"total", res.Total,
		"applied", res.Applied,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped)

	return res, nil
}

// keyFor 会话键总是指向"对方"：群聊为群名，私聊为另一方用户名
func (r *Reconciler) keyFor(entry wire.HistoryEntry) model.ConversationKey {
	switch {
	case entry.IsGroup:
		return model.Group(entry.Target)
	case entry.From == r.identity:
		return model.Direct(entry.Target)
	default:
		return model.Direct(entry.From)
	}
}
