// Package transporttest 提供测试用的内存 Requester
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/proto"
)

// Handler 处理一次请求
type Handler func(ctx context.Context, payload any) (*proto.Response, error)

// Call 一次调用记录
type Call struct {
	Action  proto.Action
	Payload any
}

// Fake 按操作名分派的内存 Requester
// 未注册的操作返回 ErrConnection
type Fake struct {
	mu       sync.Mutex
	handlers map[proto.Action]Handler
	calls    []Call
}

// New 创建 Fake
func New() *Fake {
	return &Fake{handlers: make(map[proto.Action]Handler)}
}

// Handle 注册处理函数
func (f *Fake) Handle(action proto.Action, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[action] = h
}

// Reply 固定返回 body；body 的成功标识为假时与真实客户端一样返回 ErrApplication
func (f *Fake) Reply(action proto.Action, body string) {
	f.Handle(action, func(context.Context, any) (*proto.Response, error) {
		return Response(body)
	})
}

// Fail 固定返回 err
func (f *Fake) Fail(action proto.Action, err error) {
	f.Handle(action, func(context.Context, any) (*proto.Response, error) {
		return nil, err
	})
}

// Do 实现 transport.Requester
func (f *Fake) Do(ctx context.Context, action proto.Action, payload any) (*proto.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Action: action, Payload: payload})
	h, ok := f.handlers[action]
	f.mu.Unlock()

	if !ok {
		return nil, apperrors.ErrConnection.Wrap(fmt.Errorf("no handler for %s", action))
	}
	return h(ctx, payload)
}

// Calls 指定操作的调用记录
func (f *Fake) Calls(action proto.Action) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Call
	for _, c := range f.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Count 指定操作的调用次数
func (f *Fake) Count(action proto.Action) int {
	return len(f.Calls(action))
}

// Response 解析响应 JSON
func Response(body string) (*proto.Response, error) {
	var resp proto.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, apperrors.ErrProtocol.Wrap(err)
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = apperrors.ErrApplication.Message
		}
		return &resp, apperrors.ErrApplication.WithMessage(msg)
	}
	return &resp, nil
}

// Pending GET_PENDING_MESSAGES 的成功响应
func Pending(items ...string) string {
	return listBody(proto.FieldMessages, items)
}

// History GET_HISTORY 的成功响应
func History(entries ...string) string {
	return listBody(proto.FieldHistory, entries)
}

func listBody(field string, items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(map[string]any{"success": true, field: items})
	return string(data)
}
