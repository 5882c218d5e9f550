package nats

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode"

	"sudooom.im.client/internal/model"
)

// 事件类型
const (
	EventAppended = "appended"
	EventCleared  = "cleared"
)

// Publisher 消息发布接口，*nats.Conn 实现了该接口
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event 会话变更事件
type Event struct {
	Type     string               `json:"type"`
	Identity string               `json:"identity"`
	Key      string               `json:"key"`
	Record   *model.MessageRecord `json:"record,omitempty"`
}

// BuildSubject {prefix}.{identity}.{event}
// identity 作为单个 token 写入，其中的分隔符、通配符和空白替换为 _
func BuildSubject(prefix, identity, event string) string {
	return prefix + "." + subjectToken(identity) + "." + event
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, s)
}

// Notifier 把会话变更发布到 NATS
// 实现 store.Listener，发布失败只记录日志
type Notifier struct {
	pub      Publisher
	prefix   string
	identity string
	logger   *slog.Logger
}

// NewNotifier 创建通知器
func NewNotifier(pub Publisher, prefix, identity string) *Notifier {
	return &Notifier{
		pub:      pub,
		prefix:   prefix,
		identity: identity,
		logger:   slog.Default(),
	}
}

// OnAppend 发布 appended 事件
func (n *Notifier) OnAppend(key model.ConversationKey, rec model.MessageRecord) {
	n.publish(Event{Type: EventAppended, Identity: n.identity, Key: key.String(), Record: &rec})
}

// OnClear 发布 cleared 事件
func (n *Notifier) OnClear(key model.ConversationKey) {
	n.publish(Event{Type: EventCleared, Identity: n.identity, Key: key.String()})
}

func (n *Notifier) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("Failed to marshal event", "error", err)
		return
	}

	subject := BuildSubject(n.prefix, n.identity, ev.Type)
	if err := n.pub.Publish(subject, data); err != nil {
		n.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return
	}

	n.logger.Debug("Published conversation event", "subject", subject, "key", ev.Key)
}
