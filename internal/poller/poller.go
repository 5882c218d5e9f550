package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/metrics"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/store"
	"sudooom.im.client/internal/transport"
	"sudooom.im.client/internal/wire"
)

// DefaultInterval 默认轮询周期
const DefaultInterval = 2 * time.Second

// State 轮询器状态
type State int

const (
	Idle State = iota
	Active
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Poller 待收消息轮询器
// 状态 Idle -> Active -> Stopped，只能启动一次
// 同一时刻最多一个未完成的轮询请求，上一次未返回时本次 tick 直接跳过
type Poller struct {
	requester transport.Requester
	store     *store.Store
	stamper   *model.Stamper
	identity  string
	interval  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Bool

	state   State
	stateMu sync.RWMutex

	logger *slog.Logger
}

// New 创建轮询器，interval <= 0 时使用 DefaultInterval
func New(requester transport.Requester, st *store.Store, stamper *model.Stamper, identity string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		requester: requester,
		store:     st,
		stamper:   stamper,
		identity:  identity,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		state:     Idle,
		logger:    slog.Default(),
	}
}

// Start 启动轮询
func (p *Poller) Start() error {
	p.stateMu.Lock()
	if p.state != Idle {
		state := p.state
		p.stateMu.Unlock()
		return fmt.Errorf("poller is %s", state)
	}
	p.state = Active
	p.stateMu.Unlock()

	p.wg.Add(1)
	go p.tickLoop()

	p.logger.Info("Poller started", "identity", p.identity, "interval", p.interval)
	return nil
}

// tickLoop 时钟循环协程
func (p *Poller) tickLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			if p.ctx.Err() != nil {
				return
			}
			p.onTick()
		}
	}
}

// onTick 派发一次轮询
// 已派发的请求不随 Stop 取消，结果仍会写入存储
func (p *Poller) onTick() {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.PollTicks.WithLabelValues("skipped").Inc()
		p.logger.Debug("Previous poll still in flight, tick skipped", "identity", p.identity)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		if _, err := p.PollOnce(context.WithoutCancel(p.ctx)); err != nil {
			p.logger.Warn("Poll failed", "identity", p.identity, "error", err)
		}
	}()
}

// PollOnce 同步执行一次轮询，返回新追加的记录数
// 不受在途保护约束，供定时器和手动触发使用
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	resp, err := p.requester.Do(ctx, proto.ActionGetPendingMessages, proto.UserPayload{Username: p.identity})
	if err != nil {
		metrics.PollTicks.WithLabelValues("error").Inc()
		return 0, err
	}

	var items []string
	if _, err := resp.Field(proto.FieldMessages, &items); err != nil {
		metrics.PollTicks.WithLabelValues("error").Inc()
		return 0, apperrors.ErrProtocol.Wrap(err)
	}
	metrics.PollTicks.WithLabelValues("ok").Inc()

	appended := 0
	for _, item := range items {
		msg, err := wire.DecodePending(item)
		if err != nil {
			metrics.PendingItems.WithLabelValues("malformed").Inc()
			p.logger.Warn("Skipping malformed pending message", "identity", p.identity, "item", item, "error", err)
			continue
		}
		metrics.PendingItems.WithLabelValues("decoded").Inc()

		key := model.Direct(msg.From)
		if msg.IsGroup() {
			key = model.Group(msg.Group)
		}

		// 自己发出的消息回显按 Sent 存储，与历史回放的方向判定一致
		rec := p.stamper.Record(msg.From, msg.Content, model.DirectionOf(msg.From, p.identity))
		inserted := p.store.Append(key, rec)
		metrics.RecordInsert(metrics.SourcePoll, inserted)
		if inserted {
			appended++
		}
	}

	if appended > 0 {
		p.logger.Debug("Pending messages applied", "identity", p.identity, "received", len(items), "appended", appended)
	}
	return appended, nil
}

// Stop 停止轮询，可重复调用
// 等待已派发的请求结束；ctx 到期时提前返回 ctx.Err()，在途请求在后台继续完成
func (p *Poller) Stop(ctx context.Context) error {
	p.stateMu.Lock()
	if p.state == Stopped {
		p.stateMu.Unlock()
		return nil
	}
	wasActive := p.state == Active
	p.state = Stopped
	p.stateMu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("Poller stop timed out, in-flight poll left running", "identity", p.identity)
		return ctx.Err()
	}

	if wasActive {
		p.logger.Info("Poller stopped", "identity", p.identity)
	}
	return nil
}

// State 当前状态
func (p *Poller) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}
