package nats

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/store"
)

type published struct {
	subject string
	event   Event
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	p.msgs = append(p.msgs, published{subject: subject, event: ev})
	return nil
}

func TestBuildSubject(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		want     string
	}{
		{"plain", "alice", "im.alice.appended"},
		{"dot", "a.b", "im.a_b.appended"},
		{"wildcards", "*>", "im.__.appended"},
		{"space", "bob smith", "im.bob_smith.appended"},
		{"tab", "bob\tsmith", "im.bob_smith.appended"},
		{"unicode kept", "小明", "im.小明.appended"},
		{"empty", "", "im._.appended"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSubject("im", tt.identity, EventAppended)
			assert.Equal(t, tt.want, got)
			assert.Len(t, strings.Split(got, "."), 3)
		})
	}
}

func TestNotifier_FollowsStore(t *testing.T) {
	pub := &fakePublisher{}
	st := store.New()
	st.Subscribe(NewNotifier(pub, "im.client", "alice"))

	st.Append(model.Group("team"), model.MessageRecord{From: "carol", Content: "hi", Direction: model.Received})
	st.Append(model.Group("team"), model.MessageRecord{From: "carol", Content: "hi", Direction: model.Received})
	st.Clear(model.Group("team"))

	require.Len(t, pub.msgs, 2)

	assert.Equal(t, "im.client.alice.appended", pub.msgs[0].subject)
	assert.Equal(t, EventAppended, pub.msgs[0].event.Type)
	assert.Equal(t, "alice", pub.msgs[0].event.Identity)
	assert.Equal(t, "group_team", pub.msgs[0].event.Key)
	require.NotNil(t, pub.msgs[0].event.Record)
	assert.Equal(t, "hi", pub.msgs[0].event.Record.Content)

	assert.Equal(t, "im.client.alice.cleared", pub.msgs[1].subject)
	assert.Equal(t, EventCleared, pub.msgs[1].event.Type)
	assert.Nil(t, pub.msgs[1].event.Record)
}

func TestNotifier_PublishErrorDoesNotAffectStore(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	st := store.New()
	st.Subscribe(NewNotifier(pub, "im.client", "alice"))

	assert.True(t, st.Append(model.Direct("bob"), model.MessageRecord{From: "bob", Content: "hello"}))
	assert.Equal(t, 1, st.Len(model.Direct("bob")))
}

// 需要运行中的 NATS，连接失败时跳过
func TestNotifier_LiveNATS(t *testing.T) {
	nc, err := Connect(config.NATSConfig{URL: nats.DefaultURL, MaxReconnects: 0, ReconnectWait: time.Second})
	if err != nil {
		t.Skipf("跳过测试：无法连接 NATS: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync(BuildSubject("im.test", "alice", EventAppended))
	require.NoError(t, err)

	n := NewNotifier(nc, "im.test", "alice")
	n.OnAppend(model.Direct("bob"), model.MessageRecord{From: "bob", Content: "hello"})
	require.NoError(t, nc.Flush())

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "user_bob", ev.Key)
}
