package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "sudooom.im.client/internal/errors"
)

const namespace = "im_client"

// 记录来源
const (
	SourcePoll    = "poll"
	SourceHistory = "history"
	SourceSend    = "send"
)

var (
	// TransportRequests 后端请求数（按操作和结果）
	TransportRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_requests_total",
		Help:      "Backend requests by action and outcome.",
	}, []string{"action", "outcome"})

	// PollTicks 轮询 tick 数（ok / error / skipped）
	PollTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_ticks_total",
		Help:      "Poller ticks by outcome.",
	}, []string{"outcome"})

	// PendingItems 待收消息解码结果
	PendingItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pending_items_total",
		Help:      "Pending message items by decode result.",
	}, []string{"result"})

	// HistoryEntries 历史记录处理结果
	HistoryEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_entries_total",
		Help:      "History entries by reconciliation result.",
	}, []string{"result"})

	// Records 写入会话存储的记录（按来源，appended / duplicate）
	Records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_records_total",
		Help:      "Conversation store inserts by source and result.",
	}, []string{"source", "result"})
)

func init() {
	prometheus.MustRegister(TransportRequests, PollTicks, PendingItems, HistoryEntries, Records)
}

// Handler /metrics 端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome 把错误映射为指标标签
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperrors.GetCode(err) {
	case apperrors.CodeConnection:
		return "connection"
	case apperrors.CodeProtocol:
		return "protocol"
	case apperrors.CodeApplication:
		return "application"
	case apperrors.CodeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// RecordInsert 记录一次存储插入结果
func RecordInsert(source string, inserted bool) {
	result := "duplicate"
	if inserted {
		result = "appended"
	}
	Records.WithLabelValues(source, result).Inc()
}
