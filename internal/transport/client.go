package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"sudooom.im.client/internal/config"
	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/metrics"
	"sudooom.im.client/internal/proto"
)

// DefaultMaxFrameBytes 单个响应帧的默认上限
const DefaultMaxFrameBytes = 4 << 20

// Requester 发起一次请求并等待一次响应
type Requester interface {
	Do(ctx context.Context, action proto.Action, payload any) (*proto.Response, error)
}

// Client 短连接请求客户端
// 每次调用：建连 -> 写一帧请求 -> 读一帧响应 -> 关闭，不复用连接，不重试
type Client struct {
	addr     string
	timeout  time.Duration
	maxFrame int64
	dialer   net.Dialer
	logger   *slog.Logger
}

// NewClient 创建请求客户端
// Timeout 为 0 时只受 ctx 的截止时间约束
func NewClient(cfg config.BackendConfig) *Client {
	maxFrame := cfg.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Client{
		addr:     cfg.Addr,
		timeout:  cfg.Timeout,
		maxFrame: maxFrame,
		logger:   slog.Default(),
	}
}

// Do 发送请求并返回解码后的响应
// 后端返回失败标识时，响应与 ErrApplication 同时返回
func (c *Client) Do(ctx context.Context, action proto.Action, payload any) (*proto.Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, action, payload)

	outcome := metrics.Outcome(err)
	metrics.TransportRequests.WithLabelValues(string(action), outcome).Inc()
	c.logger.Debug("Backend request finished",
		"action", action,
		"outcome", outcome,
		"elapsed", time.Since(start),
		"error", err)

	return resp, err
}

func (c *Client) do(ctx context.Context, action proto.Action, payload any) (*proto.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if payload == nil {
		payload = proto.Empty{}
	}
	frame, err := json.Marshal(proto.Request{Action: action, Data: payload})
	if err != nil {
		return nil, apperrors.ErrInvalidParams.Wrap(err)
	}
	frame = append(frame, '\n')

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if !canceled(ctx) && isTimeout(ctx, err) {
			return nil, apperrors.ErrTimeout.Wrap(err)
		}
		return nil, apperrors.ErrConnection.Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// ctx 取消时立即打断阻塞的读写
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(frame); err != nil {
		return nil, ioError(ctx, err)
	}

	raw, err := readFrame(conn, c.maxFrame)
	if err != nil {
		return nil, ioError(ctx, err)
	}

	var resp proto.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
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

// readFrame 读取到第一个换行为止；对端未发换行直接关闭时，以 EOF 前的数据为一帧
// 未收到任何字节就断开返回原始错误，由调用方按连接错误处理
func readFrame(r io.Reader, max int64) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, max+1))
	line, err := br.ReadBytes('\n')
	if len(line) == 0 {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.ErrProtocol.Wrap(err)
	}
	if int64(len(line)) > max {
		return nil, apperrors.ErrProtocol.WithMessage("response frame too large")
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, apperrors.ErrProtocol.WithMessage("empty response frame")
	}
	return line, nil
}

// ioError 把建连后的读写错误归类
// 调用方主动取消视为连接失败，截止时间到达视为超时，其余读写失败均为连接错误
func ioError(ctx context.Context, err error) error {
	var appErr *apperrors.AppError
	switch {
	case canceled(ctx):
		return apperrors.ErrConnection.Wrap(ctx.Err())
	case isTimeout(ctx, err):
		return apperrors.ErrTimeout.Wrap(err)
	case errors.As(err, &appErr):
		return err
	default:
		return apperrors.ErrConnection.Wrap(err)
	}
}

func canceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
